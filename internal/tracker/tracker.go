// Package tracker defines the abstract external issue-tracker contract.
package tracker

import (
	"context"

	"github.com/tarcisiopgs/lisa/internal/model"
)

// Tracker is the abstract interface every tracker adapter (Linear, Jira,
// GitHub/GitLab Issues, a local JSON file, …) implements.
type Tracker interface {
	// FetchNextIssue respects label filters and source.PickFrom, skips
	// issues whose blockers are still open, and returns the
	// highest-priority match first. Returns (nil, nil) if none match.
	FetchNextIssue(ctx context.Context, source model.SourceConfig) (*model.Issue, error)

	// FetchIssueByID accepts either a bare id or a canonical URL.
	FetchIssueByID(ctx context.Context, id string) (*model.Issue, error)

	// UpdateStatus moves the issue to targetState. Fails if targetState
	// does not exist on this tracker.
	UpdateStatus(ctx context.Context, id, targetState string) error

	// AttachPullRequest links prURL to the issue. Permitted to be a no-op
	// if the tracker auto-detects linked PRs.
	AttachPullRequest(ctx context.Context, id, prURL string) error

	// CompleteIssue updates state to doneState and optionally removes
	// removeLabel, as one call.
	CompleteIssue(ctx context.Context, id, doneState, removeLabel string) error

	// RemoveLabel is idempotent; succeeds silently if label is absent.
	RemoveLabel(ctx context.Context, id, label string) error

	// ListIssues is used by the TUI; not required by the core loop.
	ListIssues(ctx context.Context, source model.SourceConfig) ([]model.Issue, error)
}
