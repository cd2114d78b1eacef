package metrics

import "time"

type AttemptMetrics struct {
	Attempt    int       `json:"attempt"`
	Filename   string    `json:"filename,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Passed     bool      `json:"passed"`
	Installed  []string  `json:"installed,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	Err        string    `json:"err,omitempty"`
}

type StepMetrics struct {
	StepID      int              `json:"step_id"`
	Kind        string           `json:"kind"`
	Tool        string           `json:"tool,omitempty"`
	Description string           `json:"description"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	DurationMs  int64            `json:"duration_ms"`
	Success     bool             `json:"success"`
	Attempts    []AttemptMetrics `json:"attempts,omitempty"`
}

type MissionMetrics struct {
	MissionID    string        `json:"mission_id"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	DurationMs   int64         `json:"duration_ms"`
	PlanningMs   int64         `json:"planning_ms"`
	Succeeded    bool          `json:"succeeded"`
	Steps        []StepMetrics `json:"steps"`
	Dependencies []string      `json:"dependencies,omitempty"`
}

func (a *AttemptMetrics) Finalize() {
	a.End = time.Now()
	a.DurationMs = a.End.Sub(a.Start).Milliseconds()
}

func (s *StepMetrics) Finalize() {
	s.End = time.Now()
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

func (m *MissionMetrics) Finalize() {
	m.End = time.Now()
	m.DurationMs = m.End.Sub(m.Start).Milliseconds()
}

// TotalAttempts counts code attempts across all steps.
func (m *MissionMetrics) TotalAttempts() int {
	n := 0
	for _, s := range m.Steps {
		n += len(s.Attempts)
	}
	return n
}
