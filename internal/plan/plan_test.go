package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsToolStep(t *testing.T) {
	testCases := []struct {
		name     string
		tool     string
		expected bool
	}{
		{name: "Named tool", tool: "web_search", expected: true},
		{name: "Empty tool", tool: "", expected: false},
		{name: "Whitespace tool", tool: "   ", expected: false},
		{name: "Lowercase none", tool: "none", expected: false},
		{name: "Mixed case none", tool: "NoNe", expected: false},
		{name: "Padded none", tool: " None ", expected: false},
		{name: "Unknown tool still a tool step", tool: "does_not_exist", expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			step := Step{ID: 1, Description: "x", ToolNeeded: tc.tool}
			if got := step.IsToolStep(); got != tc.expected {
				t.Errorf("IsToolStep(%q) = %v, want %v", tc.tool, got, tc.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		plan        *Plan
		expectError bool
	}{
		{
			name:        "Nil plan",
			plan:        nil,
			expectError: true,
		},
		{
			name:        "Plan without steps",
			plan:        &Plan{GoalAnalysis: "nothing"},
			expectError: true,
		},
		{
			name: "Valid plan",
			plan: &Plan{Steps: []Step{
				{ID: 1, Description: "search docs", ToolNeeded: "web_search"},
				{ID: 2, Description: "write script"},
			}},
			expectError: false,
		},
		{
			name: "Duplicate step ids",
			plan: &Plan{Steps: []Step{
				{ID: 1, Description: "a"},
				{ID: 1, Description: "b"},
			}},
			expectError: true,
		},
		{
			name:        "Empty description",
			plan:        &Plan{Steps: []Step{{ID: 1, Description: "  "}}},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.plan)
			if tc.expectError && err == nil {
				t.Error("Expected an error, but got nil")
			}
			if !tc.expectError && err != nil {
				t.Errorf("Did not expect an error, but got: %v", err)
			}
		})
	}

	if err := Validate(&Plan{}); !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestNormalizeAssignsMissingIDs(t *testing.T) {
	p := &Plan{Steps: []Step{
		{Description: "a"},
		{ID: 1, Description: "b"},
		{Description: "c"},
	}}
	Normalize(p)

	want := []int{2, 1, 3}
	for i, s := range p.Steps {
		if s.ID != want[i] {
			t.Errorf("step %d: id = %d, want %d", i, s.ID, want[i])
		}
	}
	if err := Validate(p); err != nil {
		t.Errorf("normalized plan should validate: %v", err)
	}
}

func TestLoadPlansFromFile(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name      string
		content   string
		wantNames []string
		wantSteps []int
	}{
		{
			name:      "Single plan object",
			content:   `{"goal_analysis":"print","steps":[{"id":1,"description":"print 120"}]}`,
			wantNames: []string{"manual:plans.json"},
			wantSteps: []int{1},
		},
		{
			name:      "Bare steps array",
			content:   `[{"id":1,"description":"a","tool_needed":"web_search"},{"id":2,"description":"b"}]`,
			wantNames: []string{"manual:plans.json"},
			wantSteps: []int{2},
		},
		{
			name: "Multi plan",
			content: `{"plans":[
				{"name":"alpha","plan":{"steps":[{"id":1,"description":"a"}]}},
				[{"id":1,"description":"b"},{"id":2,"description":"c"}]
			]}`,
			wantNames: []string{"alpha", "manual:plans.json#2"},
			wantSteps: []int{1, 2},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "plans.json")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			plans, err := LoadPlansFromFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(plans) != len(tc.wantNames) {
				t.Fatalf("got %d plans, want %d", len(plans), len(tc.wantNames))
			}
			for i, p := range plans {
				if p.Name != tc.wantNames[i] {
					t.Errorf("plan %d name = %q, want %q", i, p.Name, tc.wantNames[i])
				}
				if len(p.Plan.Steps) != tc.wantSteps[i] {
					t.Errorf("plan %d has %d steps, want %d", i, len(p.Plan.Steps), tc.wantSteps[i])
				}
			}
		})
	}
}

func TestSelectPlansByNames(t *testing.T) {
	plans := []NamedPlan{
		{Name: "Alpha", Plan: &Plan{}},
		{Name: "Beta", Plan: &Plan{}},
	}

	selected, missing := SelectPlansByNames(plans, []string{"beta", "gamma"})
	if len(selected) != 1 || selected[0].Name != "Beta" {
		t.Errorf("unexpected selection: %+v", selected)
	}
	if len(missing) != 1 || missing[0] != "gamma" {
		t.Errorf("unexpected missing: %v", missing)
	}
}
