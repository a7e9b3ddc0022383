package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRevision is returned when the identity output contains no digits.
var ErrNoRevision = errors.New("no revision number in hg id output")

// CommandError describes a version-control command that exited non-zero.
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit status, or -1 if the process did not start.
	ExitCode int

	// Stderr is the captured standard error output.
	Stderr string

	// Err is the underlying error from os/exec.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
