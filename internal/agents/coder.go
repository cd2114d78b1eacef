package agents

import (
	"context"
	"fmt"

	"taskpilot/internal/workspace"
)

type Coder struct {
	caller
	ws *workspace.Dir
}

func NewCoder(c Completer, role Role, ws *workspace.Dir) *Coder {
	if role.Name == "" {
		role.Name = "coder"
	}
	return &Coder{caller: caller{c: c, role: role}, ws: ws}
}

// Write generates a script for instruction and stores it in the workspace.
// The returned artifact carries the sanitized filename and cleaned code.
func (c *Coder) Write(ctx context.Context, instruction, attemptContext string) (*workspace.Artifact, error) {
	prompt := fmt.Sprintf("Instruction: %s\nContext: %s", instruction, attemptContext)

	var a workspace.Artifact
	if err := c.ask(ctx, prompt, workspace.ArtifactSchema(), &a); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	if err := c.ws.WriteArtifact(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
