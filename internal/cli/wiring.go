package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"taskpilot/internal/agents"
	"taskpilot/internal/bridge"
	"taskpilot/internal/config"
	"taskpilot/internal/llm_client"
	"taskpilot/internal/logger"
	"taskpilot/internal/memory"
	"taskpilot/internal/mission"
	"taskpilot/internal/observability"
	"taskpilot/internal/research"
	"taskpilot/internal/sandbox"
	"taskpilot/internal/supervisor"
	"taskpilot/internal/tools"
	"taskpilot/internal/tools/builtin"
	"taskpilot/internal/workspace"
)

// app is every long-lived component of one process.
type app struct {
	cfg          *config.Config
	log          *slog.Logger
	registry     *tools.Registry
	sandbox      *sandbox.Runtime
	bridge       *bridge.Bridge
	librarian    *memory.Librarian
	orchestrator *mission.Orchestrator
	supervisor   *supervisor.Supervisor

	shutdownTracer func(context.Context) error
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.LLM.Backend = strings.ToLower(flagBackend)
	}
	if flagModel != "" {
		cfg.LLM.Model = flagModel
	}
	if flagWorkspace != "" {
		cfg.Workspace = flagWorkspace
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagEngine != "" {
		cfg.Sandbox.Engine = strings.ToLower(flagEngine)
	}
	return cfg, nil
}

// buildApp wires the configured components. Optional pieces (external
// tool servers, memory, tracing) log their failure and are left out.
func buildApp(ctx context.Context, cfg *config.Config, mcpFlags []string) (*app, error) {
	if err := logger.Init(cfg.LogFile, flagVerbose); err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}
	log := logger.Log
	a := &app{cfg: cfg, log: log, shutdownTracer: func(context.Context) error { return nil }}

	shutdown, err := observability.InitTracer("taskpilot", cfg.Observability.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing disabled", "err", err)
	} else {
		a.shutdownTracer = shutdown
	}

	provider, err := llm_client.NewProvider(llm_client.Config{
		Backend:    cfg.LLM.Backend,
		Model:      cfg.LLM.Model,
		OllamaHost: cfg.LLM.Host,
		APIKey:     os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize LLM client: %w", err)
	}
	client := llm_client.NewClient(provider, llm_client.Options{
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	}, log)

	prompts, err := config.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	a.sandbox = sandbox.New(newEngine(cfg.Sandbox.Engine), sandbox.DefaultConfig(sandbox.Spec{
		Name:    cfg.Sandbox.Name,
		Image:   cfg.Sandbox.Image,
		HostDir: ws.Root(),
		WorkDir: cfg.Sandbox.WorkDir,
		Memory:  cfg.Sandbox.Memory,
		Network: cfg.Sandbox.Network,
	}), log)
	a.sandbox.Start(ctx)

	searcher := research.NewSearcher(cfg.Search.SearxURL, cfg.Search.Timeout, log)
	researcher := research.New(searcher, research.NewScraper(0, log), client, research.Options{
		System: prompts.Researcher,
		Model:  cfg.LLM.ModelFor("researcher"),
		Limit:  cfg.Search.ResultLimit,
	}, log)

	a.registry = tools.New()
	builtin.Register(a.registry, builtin.Deps{
		Search:      searcher,
		SearchLimit: cfg.Search.ResultLimit,
		Shell:       a.sandbox,
		Forbidden:   cfg.Search.ForbiddenCmds,
		Files:       ws,
		Research:    researcher,
	})

	a.bridge = bridge.New(a.registry, bridge.DialMCP(Version), log)
	for _, srv := range mcpServers(cfg, mcpFlags) {
		names, err := a.bridge.Connect(ctx, srv)
		if err != nil {
			log.Warn("external tool server not connected", "server", srv.Command, "err", err)
			continue
		}
		log.Info("external tools registered", "server", srv.Command, "tools", names)
	}

	deps := mission.Deps{
		Planner: agents.NewPlanner(client, agents.Role{Name: "planner", System: prompts.Planner, Model: cfg.LLM.ModelFor("planner")}, a.registry.Catalog),
		Coder:   agents.NewCoder(client, agents.Role{Name: "coder", System: prompts.Coder, Model: cfg.LLM.ModelFor("coder")}, ws),
		Critic:  agents.NewCritic(client, agents.Role{Name: "critic", System: prompts.Critic, Model: cfg.LLM.ModelFor("critic")}),
		Analyst: agents.NewAnalyst(client, agents.Role{Name: "analyst", System: prompts.Analyst, Model: cfg.LLM.ModelFor("analyst")}),
		Sandbox: a.sandbox,
		Tools:   a.registry,
		Log:     log,
	}
	if lib, err := newLibrarian(ctx, cfg, log); err != nil {
		log.Warn("memory disabled", "backend", cfg.Memory.Backend, "err", err)
	} else {
		a.librarian = lib
		deps.Memory = lib
	}

	a.orchestrator = mission.New(deps, mission.Options{
		MaxAttempts:    cfg.Mission.MaxAttempts,
		PackageAliases: cfg.Mission.PackageAliases,
		PreviewLength:  cfg.Mission.PreviewLength,
	})
	a.supervisor = supervisor.New(a.orchestrator, 0, log)
	return a, nil
}

func newEngine(name string) sandbox.Engine {
	if name == "dagger" {
		return sandbox.NewDaggerEngine(nil, logger.Log)
	}
	return sandbox.NewDockerEngine()
}

func newLibrarian(ctx context.Context, cfg *config.Config, log *slog.Logger) (*memory.Librarian, error) {
	var store memory.Store
	switch cfg.Memory.Backend {
	case "redis":
		s, err := memory.NewRedisStore(ctx, memory.RedisOptions{
			Addr:     cfg.Memory.RedisAddr,
			Password: cfg.Memory.RedisPassword,
			DB:       cfg.Memory.RedisDB,
			Prefix:   cfg.Memory.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		store = s
	case "", "file":
		s, err := memory.NewFileStore(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
		store = s
	case "none":
		return nil, fmt.Errorf("memory backend is none")
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
	return memory.NewLibrarian(store, cfg.Memory.NotesDir, log), nil
}

// mcpServers merges configured servers with --mcp "cmd arg..." flags.
func mcpServers(cfg *config.Config, flags []string) []bridge.Server {
	out := make([]bridge.Server, 0, len(cfg.MCPServers)+len(flags))
	for _, s := range cfg.MCPServers {
		env := make([]string, 0, len(s.Env))
		for k, v := range s.Env {
			env = append(env, k+"="+v)
		}
		sort.Strings(env)
		out = append(out, bridge.Server{Name: s.Name, Command: s.Command, Args: s.Args, Env: env})
	}
	for _, f := range flags {
		fields := strings.Fields(f)
		if len(fields) == 0 {
			continue
		}
		out = append(out, bridge.Server{Command: fields[0], Args: fields[1:]})
	}
	return out
}

func (a *app) Close() {
	ctx := context.Background()
	if a.bridge != nil {
		_ = a.bridge.Close()
	}
	if a.sandbox != nil {
		if err := a.sandbox.Close(ctx); err != nil {
			a.log.Warn("sandbox close failed", "err", err)
		}
	}
	if a.librarian != nil {
		_ = a.librarian.Close()
	}
	_ = a.shutdownTracer(ctx)
	_ = logger.Close()
}
