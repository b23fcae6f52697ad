package worktree

import (
	"context"
	"os/exec"
)

// CmdResult holds command execution results.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// GitRunner executes git commands. Abstracted for testability.
type GitRunner interface {
	Run(ctx context.Context, args []string, dir string) (*CmdResult, error)
}

// DefaultGitRunner implements GitRunner using os/exec.
type DefaultGitRunner struct{}

// Run executes a git command in dir.
func (r *DefaultGitRunner) Run(ctx context.Context, args []string, dir string) (*CmdResult, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	stdout, err := cmd.Output()
	result := &CmdResult{Stdout: string(stdout)}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.Stderr = string(exitErr.Stderr)
		result.ExitCode = exitErr.ExitCode()
		return result, err
	}

	return result, err
}
