// Package ghapi implements platform.Platform against the GitHub REST API
// using an OAuth2 token, for deployments that would rather not shell out to
// the gh CLI.
package ghapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/tarcisiopgs/lisa/internal/platform"
)

// Platform is a token-authenticated GitHub API platform.Platform implementation.
type Platform struct {
	client *github.Client
}

// New builds a Platform authenticated with token.
func New(ctx context.Context, token string) *Platform {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	return &Platform{client: github.NewClient(httpClient)}
}

// CreatePullRequest implements platform.Platform.
func (p *Platform) CreatePullRequest(ctx context.Context, opts platform.CreatePullRequestOptions) (string, error) {
	pr, _, err := p.client.PullRequests.Create(ctx, opts.Owner, opts.Repo, &github.NewPullRequest{
		Title: &opts.Title,
		Head:  &opts.Head,
		Base:  &opts.Base,
		Body:  &opts.Body,
	})
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}

// FindOpenPR implements platform.Platform. repoPath is expected in
// "owner/repo" form.
func (p *Platform) FindOpenPR(ctx context.Context, repoPath, branch string) (string, error) {
	owner, repo, err := splitOwnerRepo(repoPath)
	if err != nil {
		return "", err
	}

	prs, _, err := p.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + branch,
	})
	if err != nil {
		return "", fmt.Errorf("list pull requests: %w", err)
	}
	if len(prs) == 0 {
		return "", nil
	}
	return prs[0].GetHTMLURL(), nil
}

// GetChangedFiles implements platform.Platform via the compare API.
func (p *Platform) GetChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error) {
	owner, repo, err := splitOwnerRepo(repoPath)
	if err != nil {
		return nil, err
	}

	comparison, _, err := p.client.Repositories.CompareCommits(ctx, owner, repo, base, head, nil)
	if err != nil {
		return nil, fmt.Errorf("compare commits: %w", err)
	}

	files := make([]string, 0, len(comparison.Files))
	for _, f := range comparison.Files {
		files = append(files, f.GetFilename())
	}
	return files, nil
}

// GetRepoInfo implements platform.Platform. cwd is expected in
// "owner/repo" form for this binding (no local git inspection).
func (p *Platform) GetRepoInfo(ctx context.Context, cwd string) (platform.RepoInfo, error) {
	owner, repo, err := splitOwnerRepo(cwd)
	if err != nil {
		return platform.RepoInfo{}, err
	}

	r, _, err := p.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return platform.RepoInfo{}, fmt.Errorf("get repository: %w", err)
	}

	return platform.RepoInfo{
		Owner:         owner,
		Repo:          repo,
		DefaultBranch: r.GetDefaultBranch(),
	}, nil
}

func splitOwnerRepo(s string) (owner, repo string, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected owner/repo, got %q", s)
	}
	return parts[0], parts[1], nil
}
