package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskpilot/internal/mission"
	"taskpilot/internal/plan"
)

type fakeRunner struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	ran     []string
	block   chan struct{}
}

func (f *fakeRunner) enter(objective string) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.ran = append(f.ran, objective)
	f.mu.Unlock()
}

func (f *fakeRunner) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeRunner) Run(ctx context.Context, objective string) mission.Outcome {
	f.enter(objective)
	defer f.leave()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return mission.Outcome{Status: mission.StatusFailed, FailedStep: "wait", Err: ctx.Err()}
		}
	}
	if objective == "bad" {
		return mission.Outcome{Status: mission.StatusFailed, FailedStep: "step one"}
	}
	return mission.Outcome{Status: mission.StatusComplete}
}

func (f *fakeRunner) RunPlan(ctx context.Context, objective string, _ *plan.Plan) mission.Outcome {
	return f.Run(ctx, "plan:"+objective)
}

func waitResult(t *testing.T, s *Supervisor) MissionResult {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a mission result")
		return MissionResult{}
	}
}

func TestMissionsRunSequentially(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	first, err := s.Submit("good", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.Submit("bad", nil)
	third, _ := s.Submit("manual", &plan.Plan{Steps: []plan.Step{{ID: 1, Description: "x"}}})

	results := map[string]MissionResult{}
	for i := 0; i < 3; i++ {
		r := waitResult(t, s)
		results[r.MissionID] = r
	}

	testCases := []struct {
		name   string
		id     string
		state  string
		status string
	}{
		{name: "Completed mission", id: first, state: StatusSucceeded, status: mission.CompletionMarker},
		{name: "Failed mission", id: second, state: StatusFailed, status: "Failed: step one"},
		{name: "Prepared plan", id: third, state: StatusSucceeded, status: mission.CompletionMarker},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := results[tc.id]
			if r.State != tc.state || r.Status != tc.status {
				t.Errorf("got state=%s status=%q, want state=%s status=%q", r.State, r.Status, tc.state, tc.status)
			}
			if got, ok := s.Get(tc.id); !ok || got.State != tc.state {
				t.Errorf("Get(%s) = %+v, %v", tc.id, got, ok)
			}
		})
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.maxSeen != 1 {
		t.Errorf("missions overlapped: %d ran at once", runner.maxSeen)
	}
	want := []string{"good", "bad", "plan:manual"}
	for i, o := range want {
		if runner.ran[i] != o {
			t.Errorf("run %d = %s, want %s", i, runner.ran[i], o)
		}
	}
	if got := len(s.List()); got != 3 {
		t.Errorf("List() has %d missions, want 3", got)
	}
}

func TestCancelRunningMission(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := New(runner, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.Cancel(""); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}

	s.Start(ctx)
	id, _ := s.Submit("long", nil)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if r, _ := s.Get(id); r.State == StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("mission never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := s.Cancel("someone-else"); err == nil {
		t.Error("cancelling a different id should fail")
	}
	got, err := s.Cancel(id)
	if err != nil || got != id {
		t.Fatalf("Cancel(%s) = %s, %v", id, got, err)
	}
	if r := waitResult(t, s); r.State != StatusCancelled {
		t.Errorf("state = %s, want %s", r.State, StatusCancelled)
	}
}

func TestSubmitWhenQueueFull(t *testing.T) {
	s := New(&fakeRunner{}, 1, nil)
	if _, err := s.Submit("a", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit("b", nil); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if r, ok := s.Get("missing"); ok {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestIsPlanRisky(t *testing.T) {
	testCases := []struct {
		name        string
		plan        *plan.Plan
		expectRisky bool
	}{
		{
			name: "Plan with a shell step",
			plan: &plan.Plan{Steps: []plan.Step{
				{ID: 1, Description: "search", ToolNeeded: "web_search"},
				{ID: 2, Description: "pip list", ToolNeeded: "run_shell"},
			}},
			expectRisky: true,
		},
		{
			name: "Plan with only safe tools and code",
			plan: &plan.Plan{Steps: []plan.Step{
				{ID: 1, Description: "search", ToolNeeded: "web_search"},
				{ID: 2, Description: "write script", ToolNeeded: "none"},
			}},
			expectRisky: false,
		},
		{name: "Empty plan", plan: &plan.Plan{}, expectRisky: false},
		{name: "Nil plan", plan: nil, expectRisky: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if isRisky := IsPlanRisky(tc.plan); isRisky != tc.expectRisky {
				t.Errorf("Expected risky=%v, but got risky=%v", tc.expectRisky, isRisky)
			}
		})
	}
}
