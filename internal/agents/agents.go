// Package agents holds the model-backed collaborators of a mission: the
// planner, the coder, the critic and the analyst.
package agents

import (
	"context"

	"taskpilot/internal/llm_client"
)

// Completer is the structured completion call every collaborator uses.
type Completer interface {
	Complete(ctx context.Context, req llm_client.Request, out any) error
}

// Role is the prompt and model shared by one collaborator.
type Role struct {
	Name   string
	System string
	Model  string
}

type caller struct {
	c    Completer
	role Role
}

func (c caller) ask(ctx context.Context, user string, schema any, out any) error {
	return c.askWith(ctx, c.role.System, user, schema, out)
}

func (c caller) askWith(ctx context.Context, system, user string, schema any, out any) error {
	return c.c.Complete(ctx, llm_client.Request{
		Role:   c.role.Name,
		Model:  c.role.Model,
		System: system,
		User:   user,
		Schema: schema,
	}, out)
}
