package mission

import (
	"fmt"

	"taskpilot/internal/agents"
	"taskpilot/internal/metrics"
	"taskpilot/internal/plan"
)

// CompletionMarker is the status text of a mission whose steps all passed.
const CompletionMarker = "Mission Complete"

type Status int

const (
	StatusComplete Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusComplete {
		return "complete"
	}
	return "failed"
}

// Outcome is the terminal state of one mission.
type Outcome struct {
	Status Status
	// FailedStep is the description of the step that could not be solved.
	FailedStep string
	// Err is set when the mission failed outside a step: planning, or
	// cancellation.
	Err          error
	Plan         *plan.Plan
	Analysis     *agents.AnalystResult
	Context      string
	Dependencies []string
	Metrics      *metrics.MissionMetrics
}

func (o Outcome) Succeeded() bool { return o.Status == StatusComplete }

// Text is the single status string of the mission.
func (o Outcome) Text() string {
	switch {
	case o.Status == StatusComplete:
		return CompletionMarker
	case o.FailedStep != "":
		return "Failed: " + o.FailedStep
	case o.Err != nil:
		return fmt.Sprintf("Failed: planning: %v", o.Err)
	default:
		return "Failed"
	}
}
