package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"dagger.io/dagger"

	"taskpilot/internal/logger"
)

const exitMarker = "__taskpilot_exit="

// DaggerEngine keeps the sandbox as a chain of dagger containers. Every
// exec remounts the host workspace, and the resulting container becomes the
// base for the next exec, so installed packages persist for the session.
type DaggerEngine struct {
	logOutput io.Writer
	log       *slog.Logger
	client    *dagger.Client
	base      *dagger.Container
	spec      Spec
	runs      atomic.Int64
}

func NewDaggerEngine(logOutput io.Writer, log *slog.Logger) *DaggerEngine {
	return &DaggerEngine{logOutput: logOutput, log: logger.OrDefault(log)}
}

// unenforcedLimits lists the parts of spec a dagger container cannot
// apply. Dagger has no per-container memory cap and always attaches the
// engine network.
func unenforcedLimits(spec Spec) []string {
	var out []string
	if spec.Memory != "" {
		out = append(out, "memory="+spec.Memory)
	}
	if !spec.Network {
		out = append(out, "network=off")
	}
	return out
}

func (d *DaggerEngine) Start(ctx context.Context, spec Spec) error {
	if d.client != nil {
		_ = d.client.Close()
		d.client = nil
	}
	opts := []dagger.ClientOpt{}
	if d.logOutput != nil {
		opts = append(opts, dagger.WithLogOutput(d.logOutput))
	}
	client, err := dagger.Connect(ctx, opts...)
	if err != nil {
		return fmt.Errorf("dagger connect: %w", err)
	}
	d.client = client
	d.spec = spec
	if limits := unenforcedLimits(spec); len(limits) > 0 {
		d.log.Warn("[Sandbox] dagger engine does not enforce these limits", "limits", limits)
	}
	d.base = client.Container().From(spec.Image).WithWorkdir(spec.WorkDir)

	if _, err := d.base.Sync(ctx); err != nil {
		_ = client.Close()
		d.client = nil
		return fmt.Errorf("dagger pull %s: %w", spec.Image, err)
	}
	return nil
}

func (d *DaggerEngine) Exec(ctx context.Context, argv []string) (string, int, error) {
	if d.client == nil {
		return "", -1, fmt.Errorf("dagger sandbox not started")
	}
	dir := d.client.Host().Directory(d.spec.HostDir)
	script := shellJoin(argv) + " 2>&1; echo \"" + exitMarker + "$?\""

	ctr := d.base.
		WithMountedDirectory(d.spec.WorkDir, dir).
		WithEnvVariable("TASKPILOT_RUN", strconv.FormatInt(d.runs.Add(1), 10)).
		WithExec([]string{"sh", "-c", script})

	stdout, err := ctr.Stdout(ctx)
	if err != nil {
		return stdout, -1, fmt.Errorf("dagger exec: %w", err)
	}
	out, code := splitExitMarker(stdout)

	if _, err := ctr.Directory(d.spec.WorkDir).Export(ctx, d.spec.HostDir); err != nil {
		return out, code, fmt.Errorf("dagger export workspace: %w", err)
	}
	d.base = ctr
	return out, code, nil
}

func (d *DaggerEngine) Close(context.Context) error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// splitExitMarker strips the trailing exit marker line and parses the code.
func splitExitMarker(stdout string) (string, int) {
	idx := strings.LastIndex(stdout, exitMarker)
	if idx < 0 {
		return stdout, -1
	}
	code, err := strconv.Atoi(strings.TrimSpace(stdout[idx+len(exitMarker):]))
	if err != nil {
		code = -1
	}
	return stdout[:idx], code
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
