package sandbox

import (
	"context"
	"log/slog"
	"sync"

	"taskpilot/internal/logger"
	"taskpilot/internal/observability"
)

// Spec describes the one environment a Runtime owns.
type Spec struct {
	Name    string // fixed instance name; a previous instance with it is replaced
	Image   string
	HostDir string // workspace folder on the host
	WorkDir string // where HostDir is mounted inside the environment
	Memory  string
	Network bool
}

// Engine is the container backend behind a Runtime.
type Engine interface {
	// Start replaces any prior instance named spec.Name with a fresh one.
	Start(ctx context.Context, spec Spec) error
	// Exec runs argv in spec.WorkDir and returns combined stdout/stderr.
	Exec(ctx context.Context, argv []string) (output string, exitCode int, err error)
	Close(ctx context.Context) error
}

type Config struct {
	Spec        Spec
	Interpreter []string // prefix used to run a workspace file
	Installer   []string // prefix used to install packages
}

func DefaultConfig(spec Spec) Config {
	return Config{
		Spec:        spec,
		Interpreter: []string{"python", "-u"},
		Installer:   []string{"pip", "install", "--quiet", "--disable-pip-version-check"},
	}
}

// Runtime owns one long-lived sandbox. Runs are serialized.
type Runtime struct {
	engine Engine
	cfg    Config
	log    *slog.Logger

	mu      sync.Mutex
	enabled bool
}

func New(engine Engine, cfg Config, log *slog.Logger) *Runtime {
	if len(cfg.Interpreter) == 0 {
		cfg.Interpreter = DefaultConfig(cfg.Spec).Interpreter
	}
	if len(cfg.Installer) == 0 {
		cfg.Installer = DefaultConfig(cfg.Spec).Installer
	}
	return &Runtime{engine: engine, cfg: cfg, log: logger.OrDefault(log)}
}

// Start brings the environment up. Failure is not returned: the runtime
// degrades to disabled and every later call answers NotRunning.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		r.log.Warn("[Sandbox] no engine configured, code execution disabled")
		r.enabled = false
		return
	}
	if err := r.engine.Start(ctx, r.cfg.Spec); err != nil {
		r.log.Warn("[Sandbox] could not start, code execution disabled", "name", r.cfg.Spec.Name, "err", err)
		r.enabled = false
		return
	}
	r.enabled = true
	r.log.Info("[Sandbox] started", "name", r.cfg.Spec.Name, "image", r.cfg.Spec.Image, "workdir", r.cfg.Spec.WorkDir)
}

func (r *Runtime) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Install adds packages to the environment. Callers treat it as best-effort.
func (r *Runtime) Install(ctx context.Context, deps []string) Result {
	if len(deps) == 0 {
		return Result{Status: StatusOK}
	}
	argv := append(append([]string{}, r.cfg.Installer...), deps...)
	return r.exec(ctx, "install", argv)
}

// Run installs deps (best-effort) then executes filename from the workspace.
func (r *Runtime) Run(ctx context.Context, filename string, deps []string) Result {
	if len(deps) > 0 {
		if res := r.Install(ctx, deps); !res.Succeeded() {
			r.log.Debug("[Sandbox] install failed", "deps", deps, "log", res.Log())
		}
	}
	argv := append(append([]string{}, r.cfg.Interpreter...), filename)
	return r.exec(ctx, "run", argv)
}

// RunShell executes command through sh without any filtering.
func (r *Runtime) RunShell(ctx context.Context, command string) Result {
	return r.exec(ctx, "shell", []string{"sh", "-c", command})
}

func (r *Runtime) exec(ctx context.Context, kind string, argv []string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		observability.RecordSandboxRun(kind, StatusDisabled.String())
		return disabled()
	}
	out, code, err := r.engine.Exec(ctx, argv)
	res := fromExec(out, code, err)
	observability.RecordSandboxRun(kind, res.Status.String())
	if err != nil {
		r.log.Error("[Sandbox] exec failed", "kind", kind, "err", err)
	}
	return res
}

// Close disposes the environment.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled || r.engine == nil {
		return nil
	}
	r.enabled = false
	return r.engine.Close(ctx)
}
