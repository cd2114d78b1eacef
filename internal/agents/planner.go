package agents

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/internal/plan"
)

// ToolsPlaceholder is replaced with the tool catalog in the planner prompt.
const ToolsPlaceholder = "{{tools}}"

type Planner struct {
	caller
	catalog func() string
}

// NewPlanner builds a planner; catalog is read on every call so tools
// registered after construction are offered too.
func NewPlanner(c Completer, role Role, catalog func() string) *Planner {
	if role.Name == "" {
		role.Name = "planner"
	}
	return &Planner{caller: caller{c: c, role: role}, catalog: catalog}
}

func (p *Planner) systemPrompt() string {
	tools := "[]"
	if p.catalog != nil {
		tools = p.catalog()
	}
	if strings.Contains(p.role.System, ToolsPlaceholder) {
		return strings.ReplaceAll(p.role.System, ToolsPlaceholder, tools)
	}
	return p.role.System + "\nAVAILABLE TOOLS:\n" + tools
}

func (p *Planner) Plan(ctx context.Context, objective, missionContext string) (*plan.Plan, error) {
	prompt := fmt.Sprintf("Objective: %s\nContext: %s", objective, missionContext)

	var out plan.Plan
	if err := p.askWith(ctx, p.systemPrompt(), prompt, plan.Schema(), &out); err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	plan.Normalize(&out)
	if err := plan.Validate(&out); err != nil {
		return nil, fmt.Errorf("generated plan invalid: %w", err)
	}
	return &out, nil
}
