// Package clirunner is a generic Agent adapter that shells out to a
// configured CLI binary, allocating it a pty so line-buffered CLIs stream
// output in real time instead of batching it.
package clirunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/overseer"
)

// MaxInvocationDuration is the hard ceiling on a single agent invocation
// (spec §5).
const MaxInvocationDuration = 30 * time.Minute

// Runner is a generic Agent backed by an external binary.
type Runner struct {
	ProviderName   string
	Binary         string
	Args           []string
	NativeWorktree bool
}

// New builds a Runner for binary, invoked as `<binary> <args...> <prompt-file>`.
func New(providerName, binary string, args []string, nativeWorktree bool) *Runner {
	return &Runner{ProviderName: providerName, Binary: binary, Args: args, NativeWorktree: nativeWorktree}
}

// Name implements agent.Agent.
func (r *Runner) Name() string { return r.ProviderName }

// SupportsNativeWorktree implements agent.Agent.
func (r *Runner) SupportsNativeWorktree() bool { return r.NativeWorktree }

// IsAvailable implements agent.Agent via a cheap `--version` probe.
func (r *Runner) IsAvailable(ctx context.Context) bool {
	installed, _ := agent.ProbeBinary(ctx, r.Binary)
	return installed
}

// Run implements agent.Agent: spawns the configured binary with prompt piped
// to stdin (and written to a scratch file, since some CLIs only accept a
// file argument), streams combined stdout/stderr through a pty into
// opts.LogFile, and enforces the hard per-invocation ceiling.
func (r *Runner) Run(ctx context.Context, prompt string, opts agent.RunOptions) (agent.RunResult, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, MaxInvocationDuration)
	defer cancel()

	promptFile, err := writePromptFile(opts.Cwd, opts.IssueID, prompt)
	if err != nil {
		return agent.RunResult{}, fmt.Errorf("write prompt file: %w", err)
	}
	defer os.Remove(promptFile)

	args := append(append([]string{}, r.Args...), promptFile)
	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	cmd.Dir = opts.Cwd
	cmd.Stdin = strings.NewReader(prompt)

	var logFile *os.File
	if opts.LogFile != "" {
		logFile, err = os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			defer logFile.Close()
		}
	}

	ptmx, pts, err := pty.Open()
	if err != nil {
		return agent.RunResult{}, fmt.Errorf("opening pty: %w", err)
	}
	defer ptmx.Close()

	cmd.Stdout = pts
	cmd.Stderr = pts

	if err := cmd.Start(); err != nil {
		pts.Close()
		return agent.RunResult{}, fmt.Errorf("starting agent: %w", err)
	}
	pts.Close() // child inherited it

	overseerCfg := overseer.Config{
		Enabled:        opts.OverseerEnabled,
		CheckInterval:  opts.OverseerInterval,
		StuckThreshold: opts.OverseerThreshold,
	}
	watchdog := overseer.Start(cmd, opts.Cwd, overseerCfg, nil)

	var output strings.Builder
	var dest io.Writer = &output
	if logFile != nil {
		dest = io.MultiWriter(&output, logFile)
	}

	if _, copyErr := io.Copy(dest, ptmx); copyErr != nil {
		var pathErr *os.PathError
		if !(errors.As(copyErr, &pathErr) && pathErr.Err == syscall.EIO) {
			_ = cmd.Wait()
			watchdog.Stop()
			return agent.RunResult{Output: output.String(), Duration: time.Since(start)}, fmt.Errorf("reading agent output: %w", copyErr)
		}
	}

	waitErr := cmd.Wait()
	watchdog.Stop()

	outputText := output.String()
	if watchdog.WasKilled() {
		outputText += "\n" + overseer.Sentinel()
	}

	result := agent.RunResult{
		Success:  waitErr == nil && !watchdog.WasKilled(),
		Output:   outputText,
		Duration: time.Since(start),
	}
	return result, nil
}

func writePromptFile(cwd, issueID, prompt string) (string, error) {
	name := ".lisa-prompt"
	if issueID != "" {
		name += "-" + issueID
	}
	path := cwd
	if path == "" {
		path = "."
	}
	full := path + string(os.PathSeparator) + name
	if err := os.WriteFile(full, []byte(prompt), 0o644); err != nil {
		return "", err
	}
	return full, nil
}
