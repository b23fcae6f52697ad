// Package platform defines the abstract PR-creation backend contract. Four
// implementations are named by the spec (GitHub CLI, GitHub API, GitLab,
// Bitbucket); this module ships concrete bindings for the first two.
package platform

import "context"

// CreatePullRequestOptions describes a PR to open.
type CreatePullRequestOptions struct {
	Owner string
	Repo  string
	Head  string
	Base  string
	Title string
	Body  string
}

// RepoInfo describes the repository at a given checkout.
type RepoInfo struct {
	Owner         string
	Repo          string
	Branch        string
	DefaultBranch string
}

// Platform is the abstract PR-creation backend.
type Platform interface {
	CreatePullRequest(ctx context.Context, opts CreatePullRequestOptions) (prURL string, err error)
	FindOpenPR(ctx context.Context, repoPath, branch string) (prURL string, err error)
	GetChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error)
	GetRepoInfo(ctx context.Context, cwd string) (RepoInfo, error)
}
