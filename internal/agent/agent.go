// Package agent defines the abstract Agent interface and the ordered
// fallback chain that iterates ModelSpecs over it.
package agent

import (
	"context"
	"time"
)

// RunOptions configures one provider invocation.
type RunOptions struct {
	Cwd               string
	LogFile           string
	GuardrailsPrefix  string
	IssueID           string
	Model             string
	NativeWorktree    bool
	OverseerEnabled   bool
	OverseerInterval  time.Duration
	OverseerThreshold time.Duration
}

// RunResult is what a provider's Run returns.
type RunResult struct {
	Success  bool
	Output   string
	Duration time.Duration
}

// Agent is the pluggable interface for an AI coding agent backend. Adapters
// (claude, codex, gemini, a generic CLI wrapper, …) implement this; the core
// never depends on a concrete backend.
type Agent interface {
	// Name is the stable identifier used in attempts and attribution.
	Name() string

	// SupportsNativeWorktree reports whether this agent can create its own
	// worktree, letting the session executor skip pre-creating one.
	SupportsNativeWorktree() bool

	// IsAvailable is a cheap probe (e.g. `<binary> --version`).
	IsAvailable(ctx context.Context) bool

	// Run spawns a child process for prompt, streams combined stdout/stderr
	// to opts.LogFile (and the terminal, outside TUI mode), respects
	// overseer supervision, and returns when the child exits or the 30
	// minute ceiling expires.
	Run(ctx context.Context, prompt string, opts RunOptions) (RunResult, error)
}

// Factory constructs an Agent for a given provider name. Used by the
// fallback chain to build a fresh Agent per ModelSpec.
type Factory func(provider string) (Agent, error)
