package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotInitialized = errors.New("llm provider not initialized")
	// ErrProvider wraps every failure surfaced by Client.Complete.
	ErrProvider = errors.New("llm provider error")
)

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
	APIKey     string
}

type Provider interface {
	Init(cfg Config) error
	Name() string
	AllowedModelOrDefault(model string) string
	GenerateJSON(ctx context.Context, system, prompt, model string, schema any) (string, error)
}

// NewProvider builds and initialises the provider named by cfg.Backend.
func NewProvider(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "ollama"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
	case "gemini":
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}
