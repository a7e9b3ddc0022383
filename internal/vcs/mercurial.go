package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command in a directory and returns its standard output.
// A non-zero exit status must be reported as a *CommandError.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &CommandError{
			Command:  commandLine(name, args),
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// commandLine joins a command for error messages.
func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// Repository is a Mercurial working copy.
type Repository struct {
	dir        string
	executable string
	runner     Runner
	logger     *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithRunner sets the command runner. Tests use it to replace hg.
func WithRunner(runner Runner) Option {
	return func(r *Repository) {
		r.runner = runner
	}
}

// WithExecutable sets the Mercurial executable.
func WithExecutable(executable string) Option {
	return func(r *Repository) {
		if executable != "" {
			r.executable = executable
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates a Repository for the working copy at dir.
func NewRepository(dir string, opts ...Option) *Repository {
	r := &Repository{
		dir:        dir,
		executable: "hg",
		runner:     ExecRunner{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dir returns the working copy path.
func (r *Repository) Dir() string {
	return r.dir
}

// CommitAndPush stages all changes, commits them with message, pushes and
// returns the new revision number. The first failing command aborts the
// sequence; nothing is retried or rolled back.
func (r *Repository) CommitAndPush(ctx context.Context, message string) (int, error) {
	commands := [][]string{
		{"addremove"},
		{"commit", "-m", message},
		{"push"},
	}

	for _, args := range commands {
		out, err := r.runner.Run(ctx, r.dir, r.executable, args...)
		r.logger.Debug("hg command finished",
			"command", commandLine(r.executable, args),
			"output", strings.TrimSpace(string(out)),
		)
		if err != nil {
			return 0, fmt.Errorf("commit and push failed: %w", err)
		}
	}

	return r.Revision(ctx)
}

// Revision returns the local revision number of the working copy parent.
func (r *Repository) Revision(ctx context.Context) (int, error) {
	out, err := r.runner.Run(ctx, r.dir, r.executable, "id", "--num")
	if err != nil {
		return 0, fmt.Errorf("failed to read revision: %w", err)
	}

	rev, err := ParseRevision(string(out))
	if err != nil {
		return 0, err
	}

	r.logger.Info("repository revision", "dir", r.dir, "revision", rev)
	return rev, nil
}

// ParseRevision extracts the revision number from "hg id --num" output by
// removing every non-digit character, so "  id: 042+\n" yields 42.
func ParseRevision(output string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, output)

	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoRevision, output)
	}

	rev, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("invalid revision number %q: %w", digits, err)
	}
	return rev, nil
}
