package plan

import (
	"errors"
	"fmt"
	"strings"
)

// NoTool is the sentinel a planner uses for steps that need generated code.
const NoTool = "none"

var ErrEmptyPlan = errors.New("plan has no steps")

type Step struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	ToolNeeded  string `json:"tool_needed,omitempty"`
}

// IsToolStep reports whether the step dispatches to a registered tool.
// Empty and "none" (any case) route to the code path.
func (s Step) IsToolStep() bool {
	t := strings.TrimSpace(s.ToolNeeded)
	return t != "" && !strings.EqualFold(t, NoTool)
}

func (s Step) Tool() string {
	return strings.TrimSpace(s.ToolNeeded)
}

type Plan struct {
	GoalAnalysis string `json:"goal_analysis"`
	Steps        []Step `json:"steps"`
}

// Schema is the JSON schema handed to the completion call for plans.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"goal_analysis": map[string]any{"type": "string"},
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":          map[string]any{"type": "integer"},
						"description": map[string]any{"type": "string"},
						"tool_needed": map[string]any{"type": []string{"string", "null"}},
					},
					"required": []string{"id", "description"},
				},
			},
		},
		"required": []string{"goal_analysis", "steps"},
	}
}

// Validate checks a plan before the step loop runs it.
func Validate(p *Plan) error {
	if p == nil || len(p.Steps) == 0 {
		return ErrEmptyPlan
	}
	seen := make(map[int]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if strings.TrimSpace(s.Description) == "" {
			return fmt.Errorf("step #%d (id %d) has an empty description", i+1, s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("step id %d is used more than once", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Normalize assigns sequential ids to steps the planner left at zero.
func Normalize(p *Plan) {
	if p == nil {
		return
	}
	used := make(map[int]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID != 0 {
			used[s.ID] = struct{}{}
		}
	}
	next := 1
	for i := range p.Steps {
		if p.Steps[i].ID != 0 {
			continue
		}
		for {
			if _, taken := used[next]; !taken {
				break
			}
			next++
		}
		p.Steps[i].ID = next
		used[next] = struct{}{}
	}
}

// CountKinds returns the number of tool steps and code steps.
func (p *Plan) CountKinds() (toolSteps, codeSteps int) {
	for _, s := range p.Steps {
		if s.IsToolStep() {
			toolSteps++
		} else {
			codeSteps++
		}
	}
	return toolSteps, codeSteps
}
