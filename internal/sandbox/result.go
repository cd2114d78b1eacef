package sandbox

import (
	"errors"
	"fmt"
)

// NotRunning is the text every operation returns while the sandbox is disabled.
const NotRunning = "Sandbox not running"

// NoOutput replaces an empty log from a successful run.
const NoOutput = "(no output)"

var ErrDisabled = errors.New("sandbox disabled")

type Status int

const (
	StatusOK       Status = iota // exit code 0
	StatusFailed                 // command ran, non-zero exit
	StatusDisabled               // environment never started
	StatusError                  // engine could not run the command
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusDisabled:
		return "disabled"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one command inside the sandbox.
type Result struct {
	Status   Status
	ExitCode int
	Output   string
	Err      error
}

func (r Result) Succeeded() bool { return r.Status == StatusOK }

// Log renders the result as the normalized text fed to the critic.
func (r Result) Log() string {
	switch r.Status {
	case StatusDisabled:
		return NotRunning
	case StatusError:
		return fmt.Sprintf("Error: %v", r.Err)
	case StatusFailed:
		return fmt.Sprintf("Error (Exit Code %d):\n%s", r.ExitCode, r.Output)
	default:
		if r.Output == "" {
			return NoOutput
		}
		return r.Output
	}
}

// Raw is the captured output without normalization, or the failure text
// when nothing ran.
func (r Result) Raw() string {
	if r.Status == StatusDisabled || r.Status == StatusError {
		return r.Log()
	}
	return r.Output
}

func disabled() Result {
	return Result{Status: StatusDisabled, ExitCode: -1, Err: ErrDisabled}
}

func fromExec(output string, exitCode int, err error) Result {
	switch {
	case err != nil:
		return Result{Status: StatusError, ExitCode: -1, Output: output, Err: err}
	case exitCode != 0:
		return Result{Status: StatusFailed, ExitCode: exitCode, Output: output}
	default:
		return Result{Status: StatusOK, Output: output}
	}
}
