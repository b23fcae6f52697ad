// Package dependency resolves a blocked issue's dependency context: the
// first blocker with an open PR, so the session executor can stack the new
// PR on top of it.
package dependency

import (
	"context"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// PROpenLookup queries a platform for an open PR whose head is branch.
// Returns ("", nil) if no open PR exists. Abstracted so the resolver does
// not depend on a concrete Platform implementation.
type PROpenLookup func(ctx context.Context, branch string) (prURL string, err error)

// ChangedFilesLookup returns the files changed between base and head.
type ChangedFilesLookup func(ctx context.Context, repoPath, base, head string) ([]string, error)

// Resolve walks issue's blockers in order and returns the Dependency context
// for the first one with both a locatable branch and an open PR. Returns
// nil (not an error) if no blocker resolves — the issue is then treated as
// unblocked, matching the spec's tolerance for a tracker/resolver race.
func Resolve(
	ctx context.Context,
	git worktree.GitRunner,
	repoPath string,
	issue model.Issue,
	baseBranch string,
	findOpenPR PROpenLookup,
	changedFiles ChangedFilesLookup,
) (*model.Dependency, error) {
	for _, blockerID := range issue.Blockers {
		branch, err := worktree.FindBranchByIssueID(ctx, git, repoPath, blockerID)
		if err != nil || branch == "" {
			continue
		}

		prURL, err := findOpenPR(ctx, branch)
		if err != nil || prURL == "" {
			continue
		}

		files, err := changedFiles(ctx, repoPath, baseBranch, branch)
		if err != nil {
			files = nil
		}

		return &model.Dependency{
			BlockerID:     blockerID,
			BlockerBranch: branch,
			BlockerPRURL:  prURL,
			ChangedFiles:  files,
		}, nil
	}

	return nil, nil
}
