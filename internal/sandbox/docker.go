package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs a host command and returns its combined output.
// A non-zero exit is reported through exitCode, not err.
type CommandRunner func(ctx context.Context, name string, args ...string) (output string, exitCode int, err error)

func hostRunner(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}
	if err != nil {
		return string(out), -1, err
	}
	return string(out), 0, nil
}

// DockerEngine drives a named, detached container through the docker CLI.
// The workspace is bind-mounted read-write so generated files are visible
// without copying.
type DockerEngine struct {
	binary string
	run    CommandRunner
	spec   Spec
}

func NewDockerEngine() *DockerEngine {
	return &DockerEngine{binary: "docker", run: hostRunner}
}

// NewDockerEngineWithRunner is used by tests to capture docker invocations.
func NewDockerEngineWithRunner(binary string, run CommandRunner) *DockerEngine {
	return &DockerEngine{binary: binary, run: run}
}

func (d *DockerEngine) Start(ctx context.Context, spec Spec) error {
	if spec.Name == "" || spec.Image == "" {
		return fmt.Errorf("docker sandbox needs a name and an image")
	}
	d.spec = spec

	// Forcibly replace any previous instance so only one sandbox lives.
	_, _, _ = d.run(ctx, d.binary, "rm", "-f", spec.Name)

	args := []string{
		"run", "-d",
		"--name", spec.Name,
		"-v", spec.HostDir + ":" + spec.WorkDir + ":rw",
		"-w", spec.WorkDir,
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	if !spec.Network {
		args = append(args, "--network", "none")
	}
	args = append(args, spec.Image, "tail", "-f", "/dev/null")

	out, code, err := d.run(ctx, d.binary, args...)
	if err != nil {
		return fmt.Errorf("docker run: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker run exited %d: %s", code, strings.TrimSpace(out))
	}
	return nil
}

func (d *DockerEngine) Exec(ctx context.Context, argv []string) (string, int, error) {
	if d.spec.Name == "" {
		return "", -1, fmt.Errorf("docker sandbox not started")
	}
	args := append([]string{"exec", "-w", d.spec.WorkDir, d.spec.Name}, argv...)
	return d.run(ctx, d.binary, args...)
}

func (d *DockerEngine) Close(ctx context.Context) error {
	if d.spec.Name == "" {
		return nil
	}
	out, code, err := d.run(ctx, d.binary, "rm", "-f", d.spec.Name)
	if err != nil {
		return fmt.Errorf("docker rm: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker rm exited %d: %s", code, strings.TrimSpace(out))
	}
	return nil
}
