package supervisor

import (
	"time"

	"taskpilot/internal/agents"
	"taskpilot/internal/metrics"
	"taskpilot/internal/plan"
)

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Mission struct {
	ID        string
	Objective string
	Plan      *plan.Plan // nil means the planner decides
	State     string
	Submitted time.Time
}

type MissionResult struct {
	MissionID    string                  `json:"mission_id"`
	Objective    string                  `json:"objective"`
	State        string                  `json:"state"`
	Status       string                  `json:"status,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Dependencies []string                `json:"dependencies,omitempty"`
	Analysis     *agents.AnalystResult   `json:"analysis,omitempty"`
	Metrics      *metrics.MissionMetrics `json:"metrics,omitempty"`
	Submitted    time.Time               `json:"submitted"`
}

// riskyTools are tools that change the sandbox rather than read from it.
var riskyTools = map[string]struct{}{
	"run_shell": {},
}

// IsPlanRisky reports whether p runs shell commands.
func IsPlanRisky(p *plan.Plan) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		if !s.IsToolStep() {
			continue
		}
		if _, risky := riskyTools[s.Tool()]; risky {
			return true
		}
	}
	return false
}
