package agents

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/llm_client"
	"taskpilot/internal/workspace"
)

type fakeCompleter struct {
	reply string
	err   error
	reqs  []llm_client.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm_client.Request, out any) error {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestPlannerInjectsCatalog(t *testing.T) {
	fc := &fakeCompleter{reply: `{"goal_analysis":"simple","steps":[{"description":"search","tool_needed":"web_search"},{"description":"code","tool_needed":null}]}`}
	p := NewPlanner(fc, Role{System: "Plan.\nTOOLS:\n{{tools}}\nDone", Model: "m"}, func() string { return `[{"name":"web_search"}]` })

	got, err := p.Plan(context.Background(), "find go docs", "prior")
	require.NoError(t, err)

	require.Len(t, got.Steps, 2)
	assert.Equal(t, 1, got.Steps[0].ID)
	assert.Equal(t, 2, got.Steps[1].ID)
	assert.True(t, got.Steps[0].IsToolStep())
	assert.False(t, got.Steps[1].IsToolStep())

	require.Len(t, fc.reqs, 1)
	assert.Equal(t, "Plan.\nTOOLS:\n[{\"name\":\"web_search\"}]\nDone", fc.reqs[0].System)
	assert.Equal(t, "Objective: find go docs\nContext: prior", fc.reqs[0].User)
	assert.Equal(t, "planner", fc.reqs[0].Role)
	assert.NotNil(t, fc.reqs[0].Schema)
}

func TestPlannerRejectsEmptyPlan(t *testing.T) {
	p := NewPlanner(&fakeCompleter{reply: `{"goal_analysis":"x","steps":[]}`}, Role{System: "s"}, nil)
	_, err := p.Plan(context.Background(), "o", "")
	assert.Error(t, err)

	boom := errors.New("offline")
	p = NewPlanner(&fakeCompleter{err: boom}, Role{System: "s"}, nil)
	_, err = p.Plan(context.Background(), "o", "")
	assert.ErrorIs(t, err, boom)
}

func TestCoderWritesArtifact(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	fc := &fakeCompleter{reply: `{"filename":"fact.py","code":"` + "```python\\nprint(120)\\n```" + `","dependencies":["numpy"]}`}

	a, err := NewCoder(fc, Role{System: "code"}, ws).Write(context.Background(), "factorial of 5", "ctx")
	require.NoError(t, err)

	assert.Equal(t, "fact.py", a.Filename)
	assert.Equal(t, "print(120)", a.Code)
	assert.Equal(t, []string{"numpy"}, a.Dependencies)
	b, err := os.ReadFile(ws.Path("fact.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(120)", string(b))
	assert.Equal(t, "Instruction: factorial of 5\nContext: ctx", fc.reqs[0].User)
}

func TestCriticShortCircuitsSilentLogs(t *testing.T) {
	testCases := []struct {
		name string
		log  string
	}{
		{name: "Empty", log: ""},
		{name: "Whitespace", log: "  \n"},
		{name: "Sentinel", log: "(no output)"},
		{name: "Sentinel other case", log: "(No Output)"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeCompleter{err: errors.New("must not be called")}
			got, err := NewCritic(fc, Role{}).Review(context.Background(), "a.py", tc.log)
			require.NoError(t, err)
			assert.False(t, got.IsPassing)
			assert.Equal(t, SilentFeedback, got.Feedback)
			assert.Equal(t, SilentFix, got.SuggestedFix)
			assert.Empty(t, fc.reqs)
		})
	}
}

func TestCriticPassesLineHint(t *testing.T) {
	fc := &fakeCompleter{reply: `{"is_passing":false,"feedback":"NameError","suggested_fix":"define x"}`}
	log := "Traceback:\n  File \"a.py\", line 7, in <module>\nNameError: x\n  line 9"

	got, err := NewCritic(fc, Role{}).Review(context.Background(), "a.py", log)
	require.NoError(t, err)

	assert.Equal(t, "define x", got.SuggestedFix)
	assert.Contains(t, fc.reqs[0].User, "Logs (Line 7):\n")
}

func TestLineHint(t *testing.T) {
	assert.Equal(t, "", LineHint("all good"))
	assert.Equal(t, " (Line 12)", LineHint("error on line 12"))
}

func TestAnalyst(t *testing.T) {
	fc := &fakeCompleter{reply: `{"root_cause":"missing dep","lesson_learned":"declare deps"}`}
	got, err := NewAnalyst(fc, Role{}).Analyze(context.Background(), "obj", "ctx")
	require.NoError(t, err)
	assert.Equal(t, AnalystResult{RootCause: "missing dep", LessonLearned: "declare deps"}, got)
	assert.Equal(t, "analyst", fc.reqs[0].Role)
}
