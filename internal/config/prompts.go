package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts holds the system prompt for each collaborator role.
type Prompts struct {
	Planner    string `yaml:"planner"`
	Coder      string `yaml:"coder"`
	Critic     string `yaml:"critic"`
	Analyst    string `yaml:"analyst"`
	Researcher string `yaml:"researcher"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		Planner: "You are a Smart Planner. Break the objective into a short ordered list of steps.\n" +
			"AVAILABLE TOOLS:\n{{tools}}\n\n" +
			"To use a tool, create a step with tool_needed=\"tool_name\" and description=\"argument\".\n" +
			"If the step needs code instead, set tool_needed to null.",
		Coder: "You are a coder. Write one complete, runnable Python 3 script for the instruction. " +
			"Print every result explicitly. List third-party pip packages in dependencies.",
		Critic: "You are a QA engineer. Decide from the execution logs whether the script did what was asked. " +
			"When it failed, explain why and suggest a concrete fix.",
		Analyst:    "You are an analyst. Find the root cause of the failed mission and state the lesson learned.",
		Researcher: "You are a Technical Researcher.",
	}
}

// LoadPrompts reads a YAML prompt file; missing roles keep their defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read prompts %s: %w", path, err)
	}
	var loaded Prompts
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return p, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	fill(&p.Planner, loaded.Planner)
	fill(&p.Coder, loaded.Coder)
	fill(&p.Critic, loaded.Critic)
	fill(&p.Analyst, loaded.Analyst)
	fill(&p.Researcher, loaded.Researcher)
	return p, nil
}

func fill(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
