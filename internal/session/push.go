package session

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/prompt"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// MaxPushRetries bounds the number of push-recovery re-invocations (spec
// §4.5 "push with recovery").
const MaxPushRetries = 2

var hookFailurePattern = regexp.MustCompile(`(?i)husky|pre-push|hook|lint|typecheck`)

// isHookFailure reports whether a push failure looks like a pre-push hook
// rejection (lint/typecheck/husky), as opposed to a fatal permission or
// network failure.
func isHookFailure(output string) bool {
	return hookFailurePattern.MatchString(output)
}

// pushResult is the outcome of pushWithRecovery.
type pushResult struct {
	Success     bool
	Fallback    model.FallbackResult
	RecoveryRun bool
}

// pushWithRecovery runs `git push -u origin <branch>` in cwd. On a hook
// failure it re-invokes the fallback chain with a push-recovery prompt and
// retries, up to MaxPushRetries times. A non-hook failure is returned as a
// fatal error immediately.
func (e *Executor) pushWithRecovery(ctx context.Context, cwd, branch string, issue model.Issue, runOpts agent.RunOptions) (pushResult, error) {
	var lastFallback model.FallbackResult

	for attempt := 0; attempt <= MaxPushRetries; attempt++ {
		result, pushErr := e.Git.Run(ctx, []string{"push", "-u", "origin", branch}, cwd)
		if pushErr == nil {
			return pushResult{Success: true, Fallback: lastFallback}, nil
		}

		output := ""
		if result != nil {
			output = result.Stderr + "\n" + result.Stdout
		}

		if !isHookFailure(output) {
			return pushResult{}, fmt.Errorf("push failed (non-recoverable): %w", pushErr)
		}

		if attempt == MaxPushRetries {
			return pushResult{Success: false, Fallback: lastFallback}, nil
		}

		var wtContext *worktree.Context
		if e.Worktree != nil {
			wtContext = e.Worktree.GatherContext(ctx, worktree.Worktree{Path: cwd, Branch: branch}, worktree.DefaultContextOptions())
		}
		recoveryPrompt := prompt.BuildPushRecovery(issue, output, wtContext)
		lastFallback = agent.RunChain(ctx, agent.ChainOptions{
			Specs:      e.ModelSpecs,
			Prompt:     recoveryPrompt,
			Run:        runOpts,
			Factory:    e.Factory,
			Guardrails: e.Guardrails,
			IssueID:    issue.ID,
		})
		if !lastFallback.Success {
			return pushResult{Success: false, Fallback: lastFallback, RecoveryRun: true}, nil
		}
	}

	return pushResult{Success: false, Fallback: lastFallback, RecoveryRun: true}, nil
}
