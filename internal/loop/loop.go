// Package loop implements the main daemon loop (spec §4.9) and the signal-
// driven shutdown/orphan-recovery protocol (spec §4.8), grounded on the
// teacher's runDaemon (ticker + signal + once-flag dispatch) and
// medivac/engine's scan-then-cooldown cycle structure.
package loop

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/output"
	"github.com/tarcisiopgs/lisa/internal/process"
	"github.com/tarcisiopgs/lisa/internal/tracker"
)

// Executor runs one issue to completion. Satisfied by *session.Executor;
// narrowed to an interface here so the loop is testable without a real
// worktree/agent/platform stack.
type Executor interface {
	Execute(ctx context.Context, issue model.Issue) (model.SessionResult, error)
}

// Options parameterizes one Loop.Run call.
type Options struct {
	Once    bool
	Limit   int // 0 = unbounded
	DryRun  bool
	IssueID string // explicit target instead of the queue
}

// Loop drives the tracker -> session -> tracker cycle.
type Loop struct {
	Tracker  tracker.Tracker
	Executor Executor
	Source   model.SourceConfig
	Process  *process.Context
	Cooldown time.Duration
	Logger   *slog.Logger

	// Output, when non-nil, prints operator-facing status lines alongside
	// the structured log stream. Left nil in daemon mode without -v, where
	// the slog stream is the only channel (spec §9).
	Output *output.Output
}

func (l *Loop) info(format string, args ...any) {
	if l.Output != nil {
		l.Output.Info(format, args...)
	}
}

func (l *Loop) success(format string, args ...any) {
	if l.Output != nil {
		l.Output.Success(format, args...)
	}
}

func (l *Loop) warn(format string, args ...any) {
	if l.Output != nil {
		l.Output.Warn(format, args...)
	}
}

func (l *Loop) fail(format string, args ...any) {
	if l.Output != nil {
		l.Output.Error(format, args...)
	}
}

// Run executes the main loop per Options until a stop condition is reached:
// once completes one iteration, limit is exhausted, the queue is empty, a
// complete-provider-exhaustion result is seen, or the context is canceled.
func (l *Loop) Run(ctx context.Context, opts Options) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer l.Process.Emit(process.Event{Kind: process.EventDone})

	sessions := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opts.Limit > 0 && sessions >= opts.Limit {
			return nil
		}

		issue, err := l.fetchIssue(ctx, opts)
		if err != nil {
			logger.Error("fetch issue failed", "err", err)
			l.fail("fetch issue failed: %s", err)
			if opts.Once {
				return err
			}
			if !l.sleepCooldown(ctx) {
				return ctx.Err()
			}
			continue
		}
		if issue == nil {
			l.Process.Emit(process.Event{Kind: process.EventEmpty})
			l.info("queue empty, nothing to do")
			return nil
		}

		l.Process.Emit(process.Event{Kind: process.EventQueued, IssueID: issue.ID})
		l.info("queued issue %s", issue.ID)

		if opts.DryRun {
			logger.Info("dry run: would process issue", "issue", issue.ID)
			l.info("dry run: would process issue %s", issue.ID)
			if opts.Once {
				return nil
			}
			continue
		}

		stop, err := l.runOne(ctx, *issue, opts, logger)
		sessions++
		if err != nil {
			logger.Error("session error", "issue", issue.ID, "err", err)
		}
		if stop {
			return nil
		}
		if opts.Once {
			return nil
		}
		if !l.sleepCooldown(ctx) {
			return ctx.Err()
		}
	}
}

func (l *Loop) fetchIssue(ctx context.Context, opts Options) (*model.Issue, error) {
	if opts.IssueID != "" {
		return l.Tracker.FetchIssueByID(ctx, opts.IssueID)
	}
	return l.Tracker.FetchNextIssue(ctx, l.Source)
}

// runOne runs a single session for issue end to end, including the tracker
// transitions and rollback decisions from spec §4.9 steps 3-8. It returns
// stop=true when the loop must halt (complete provider exhaustion).
func (l *Loop) runOne(ctx context.Context, issue model.Issue, opts Options, logger *slog.Logger) (stop bool, err error) {
	previousStatus := l.Source.PickFrom
	if err := l.Tracker.UpdateStatus(ctx, issue.ID, l.Source.InProgress); err != nil {
		return false, err
	}
	l.Process.SetSlot(process.CleanupSlot{IssueID: issue.ID, PreviousStatus: previousStatus, Tracker: l.Tracker})
	l.Process.Emit(process.Event{Kind: process.EventStarted, IssueID: issue.ID})
	l.info("running issue %s", issue.ID)

	result, execErr := l.Executor.Execute(ctx, issue)
	if result.Fallback.Output != "" {
		l.Process.Emit(process.Event{Kind: process.EventOutput, IssueID: issue.ID, Detail: result.Fallback.Output})
	}
	if execErr != nil {
		l.rollback(ctx, issue.ID, previousStatus)
		l.Process.Emit(process.Event{Kind: process.EventReverted, IssueID: issue.ID, Detail: execErr.Error()})
		l.fail("issue %s errored: %s", issue.ID, execErr)
		return false, execErr
	}

	if !result.Success {
		if model.IsCompleteProviderExhaustion(result.Fallback.Attempts) {
			logger.Warn("complete provider exhaustion, stopping loop", "issue", issue.ID)
			l.fail("issue %s: every configured provider is unavailable, stopping", issue.ID)
			l.Process.ClearSlot()
			return true, nil
		}
		l.rollback(ctx, issue.ID, previousStatus)
		l.Process.Emit(process.Event{Kind: process.EventReverted, IssueID: issue.ID})
		l.warn("issue %s rolled back: agent did not succeed", issue.ID)
		return false, nil
	}

	if len(result.PRURLs) == 0 {
		// success but no PR delivered: treated as a rollback reason, not a
		// completion (spec §4.9 step 6).
		l.rollback(ctx, issue.ID, previousStatus)
		l.Process.Emit(process.Event{Kind: process.EventReverted, IssueID: issue.ID})
		l.warn("issue %s rolled back: session succeeded but opened no pull request", issue.ID)
		return false, nil
	}

	for _, prURL := range result.PRURLs {
		if attachErr := l.Tracker.AttachPullRequest(ctx, issue.ID, prURL); attachErr != nil {
			logger.Warn("attach pull request failed", "issue", issue.ID, "err", attachErr)
		}
	}

	removeLabel := l.Source.RemoveLabel
	if opts.IssueID != "" {
		// the session targeted a single issue by id: leave the pickup label
		// so the operator can retrigger it.
		removeLabel = ""
	}
	if completeErr := l.Tracker.CompleteIssue(ctx, issue.ID, l.Source.Done, removeLabel); completeErr != nil {
		l.Process.ClearSlot()
		l.fail("issue %s: failed to mark complete: %s", issue.ID, completeErr)
		return false, completeErr
	}

	l.Process.ClearSlot()
	l.Process.Emit(process.Event{Kind: process.EventCompleted, IssueID: issue.ID})
	l.success("issue %s resolved: %s", issue.ID, strings.Join(result.PRURLs, ", "))
	return false, nil
}

func (l *Loop) rollback(ctx context.Context, issueID, previousStatus string) {
	_ = l.Tracker.UpdateStatus(ctx, issueID, previousStatus)
	l.Process.ClearSlot()
}

func (l *Loop) sleepCooldown(ctx context.Context) bool {
	if l.Cooldown <= 0 {
		return true
	}
	timer := time.NewTimer(l.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

