package agents

import (
	"context"
	"fmt"
)

type AnalystResult struct {
	RootCause     string `json:"root_cause"`
	LessonLearned string `json:"lesson_learned"`
}

type Analyst struct {
	caller
}

func NewAnalyst(c Completer, role Role) *Analyst {
	if role.Name == "" {
		role.Name = "analyst"
	}
	return &Analyst{caller: caller{c: c, role: role}}
}

func (a *Analyst) Analyze(ctx context.Context, objective, missionContext string) (AnalystResult, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"root_cause":     map[string]any{"type": "string"},
			"lesson_learned": map[string]any{"type": "string"},
		},
		"required": []string{"root_cause", "lesson_learned"},
	}
	var out AnalystResult
	if err := a.ask(ctx, fmt.Sprintf("Objective: %s\nContext: %s", objective, missionContext), schema, &out); err != nil {
		return AnalystResult{}, fmt.Errorf("failed to analyze failure: %w", err)
	}
	return out, nil
}
