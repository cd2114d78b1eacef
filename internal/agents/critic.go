package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"taskpilot/internal/sandbox"
)

const (
	SilentFeedback = "Silent error (no output)"
	SilentFix      = "Add explicit output"
)

var lineRe = regexp.MustCompile(`line (\d+)`)

type Critique struct {
	IsPassing    bool   `json:"is_passing"`
	Feedback     string `json:"feedback"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

func critiqueSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_passing":    map[string]any{"type": "boolean"},
			"feedback":      map[string]any{"type": "string"},
			"suggested_fix": map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"is_passing", "feedback"},
	}
}

type Critic struct {
	caller
}

func NewCritic(c Completer, role Role) *Critic {
	if role.Name == "" {
		role.Name = "critic"
	}
	return &Critic{caller: caller{c: c, role: role}}
}

// IsSilent reports whether an execution log carries nothing to analyze.
func IsSilent(log string) bool {
	t := strings.TrimSpace(log)
	return t == "" || strings.EqualFold(t, sandbox.NoOutput)
}

// LineHint returns " (Line N)" for the first "line N" in log, or "".
func LineHint(log string) string {
	m := lineRe.FindStringSubmatch(log)
	if m == nil {
		return ""
	}
	return fmt.Sprintf(" (Line %s)", m[1])
}

// Review judges the execution log of filename. Silent logs fail without a
// model call.
func (c *Critic) Review(ctx context.Context, filename, log string) (Critique, error) {
	if IsSilent(log) {
		return Critique{IsPassing: false, Feedback: SilentFeedback, SuggestedFix: SilentFix}, nil
	}
	prompt := fmt.Sprintf("File: %s\nLogs%s:\n%s", filename, LineHint(log), log)

	var out Critique
	if err := c.ask(ctx, prompt, critiqueSchema(), &out); err != nil {
		return Critique{}, fmt.Errorf("failed to review execution: %w", err)
	}
	return out, nil
}
