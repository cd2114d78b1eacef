package sandbox

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCmd struct {
	name string
	args []string
}

func TestDockerEngineLifecycle(t *testing.T) {
	var cmds []recordedCmd
	run := func(_ context.Context, name string, args ...string) (string, int, error) {
		cmds = append(cmds, recordedCmd{name: name, args: args})
		if args[0] == "exec" {
			return "hello\n", 0, nil
		}
		return "", 0, nil
	}
	eng := NewDockerEngineWithRunner("docker", run)
	spec := Spec{Name: "taskpilot-sandbox", Image: "python:3.10-slim", HostDir: "/tmp/ws", WorkDir: "/app", Memory: "512m", Network: true}

	require.NoError(t, eng.Start(context.Background(), spec))
	require.Len(t, cmds, 2)
	assert.Equal(t, []string{"rm", "-f", "taskpilot-sandbox"}, cmds[0].args, "stale sandbox must be removed first")
	startLine := strings.Join(cmds[1].args, " ")
	assert.Contains(t, startLine, "run -d --name taskpilot-sandbox")
	assert.Contains(t, startLine, "-v /tmp/ws:/app:rw")
	assert.Contains(t, startLine, "--memory 512m")
	assert.NotContains(t, startLine, "--network none")
	assert.True(t, strings.HasSuffix(startLine, "python:3.10-slim tail -f /dev/null"))

	out, code, err := eng.Exec(context.Background(), []string{"python", "-u", "a.py"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", out)
	assert.Equal(t, []string{"exec", "-w", "/app", "taskpilot-sandbox", "python", "-u", "a.py"}, cmds[2].args)

	require.NoError(t, eng.Close(context.Background()))
	assert.Equal(t, []string{"rm", "-f", "taskpilot-sandbox"}, cmds[3].args)
}

func TestDockerEngineStartFailure(t *testing.T) {
	run := func(_ context.Context, _ string, args ...string) (string, int, error) {
		if args[0] == "run" {
			return "Unable to find image", 125, nil
		}
		return "", 0, nil
	}
	eng := NewDockerEngineWithRunner("docker", run)

	err := eng.Start(context.Background(), Spec{Name: "sb", Image: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 125")
}

func TestDockerEngineExecBeforeStart(t *testing.T) {
	eng := NewDockerEngineWithRunner("docker", func(context.Context, string, ...string) (string, int, error) {
		t.Fatal("runner must not be called")
		return "", 0, nil
	})
	_, _, err := eng.Exec(context.Background(), []string{"ls"})
	assert.Error(t, err)
}

func TestSplitExitMarker(t *testing.T) {
	testCases := []struct {
		name     string
		stdout   string
		wantOut  string
		wantCode int
	}{
		{name: "Success", stdout: "120\n" + exitMarker + "0\n", wantOut: "120\n", wantCode: 0},
		{name: "Failure", stdout: "Traceback\n" + exitMarker + "1\n", wantOut: "Traceback\n", wantCode: 1},
		{name: "Missing marker", stdout: "weird", wantOut: "weird", wantCode: -1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, code := splitExitMarker(tc.stdout)
			assert.Equal(t, tc.wantOut, out)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, "python -u main.py", shellJoin([]string{"python", "-u", "main.py"}))
	assert.Equal(t, "pip install 'qrcode[pil]'", shellJoin([]string{"pip", "install", "qrcode[pil]"}))
	assert.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}
