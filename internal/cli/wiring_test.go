package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/bridge"
	"taskpilot/internal/config"
	"taskpilot/internal/sandbox"
)

func TestMCPServersMergesConfigAndFlags(t *testing.T) {
	cfg := config.Default()
	cfg.MCPServers = []config.MCPServer{
		{Name: "files", Command: "npx", Args: []string{"server-files"}, Env: map[string]string{"B": "2", "A": "1"}},
	}

	got := mcpServers(cfg, []string{"uvx  server-time --utc", "   "})

	assert.Equal(t, []bridge.Server{
		{Name: "files", Command: "npx", Args: []string{"server-files"}, Env: []string{"A=1", "B=2"}},
		{Command: "uvx", Args: []string{"server-time", "--utc"}},
	}, got)
}

func TestNewEngine(t *testing.T) {
	assert.IsType(t, &sandbox.DaggerEngine{}, newEngine("dagger"))
	assert.IsType(t, &sandbox.DockerEngine{}, newEngine("docker"))
	assert.IsType(t, &sandbox.DockerEngine{}, newEngine(""))
}

func TestNewLibrarianBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Path = filepath.Join(t.TempDir(), "skills.jsonl")
	cfg.Memory.NotesDir = t.TempDir()

	lib, err := newLibrarian(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, lib.Close())

	cfg.Memory.Backend = "none"
	_, err = newLibrarian(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg.Memory.Backend = "chroma"
	_, err = newLibrarian(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	t.Cleanup(func() {
		flagConfig, flagBackend, flagModel, flagWorkspace, flagEngine = "", "", "", "", ""
	})
	flagConfig = filepath.Join(t.TempDir(), "missing.yaml")
	flagBackend = "Gemini"
	flagModel = "gemini-2.5-flash"
	flagWorkspace = "ws"
	flagEngine = "DAGGER"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "ws", cfg.Workspace)
	assert.Equal(t, "dagger", cfg.Sandbox.Engine)
}
