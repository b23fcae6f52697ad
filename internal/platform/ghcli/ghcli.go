// Package ghcli implements platform.Platform by shelling out to the GitHub
// CLI (`gh`), grounded on the teacher's wt.GHRunner pattern.
package ghcli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tarcisiopgs/lisa/internal/platform"
)

// Platform is a gh-CLI-backed platform.Platform implementation.
type Platform struct{}

// New builds a gh-CLI Platform.
func New() *Platform { return &Platform{} }

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), fmt.Errorf("gh %v: %s", args, exitErr.Stderr)
	}
	return string(out), err
}

type prInfo struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
	State  string `json:"state"`
}

// CreatePullRequest implements platform.Platform.
func (p *Platform) CreatePullRequest(ctx context.Context, opts platform.CreatePullRequestOptions) (string, error) {
	args := []string{"pr", "create",
		"--base", opts.Base,
		"--head", opts.Head,
		"--title", opts.Title,
		"--body", opts.Body,
	}
	out, err := run(ctx, "", args...)
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// FindOpenPR implements platform.Platform.
func (p *Platform) FindOpenPR(ctx context.Context, repoPath, branch string) (string, error) {
	out, err := run(ctx, repoPath, "pr", "list", "--head", branch, "--state", "open", "--json", "url,number,state")
	if err != nil {
		return "", fmt.Errorf("list open prs: %w", err)
	}

	var prs []prInfo
	if jsonErr := json.Unmarshal([]byte(out), &prs); jsonErr != nil {
		return "", fmt.Errorf("parse pr list: %w", jsonErr)
	}
	if len(prs) == 0 {
		return "", nil
	}
	return prs[0].URL, nil
}

// GetChangedFiles implements platform.Platform.
func (p *Platform) GetChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", base+"..."+head)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// GetRepoInfo implements platform.Platform.
func (p *Platform) GetRepoInfo(ctx context.Context, cwd string) (platform.RepoInfo, error) {
	out, err := run(ctx, cwd, "repo", "view", "--json", "owner,name,defaultBranchRef")
	if err != nil {
		return platform.RepoInfo{}, fmt.Errorf("repo view: %w", err)
	}

	var parsed struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
		Name             string `json:"name"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}
	if jsonErr := json.Unmarshal([]byte(out), &parsed); jsonErr != nil {
		return platform.RepoInfo{}, fmt.Errorf("parse repo view: %w", jsonErr)
	}

	branchCmd := exec.CommandContext(ctx, "git", "branch", "--show-current")
	branchCmd.Dir = cwd
	branchOut, _ := branchCmd.Output()

	return platform.RepoInfo{
		Owner:         parsed.Owner.Login,
		Repo:          parsed.Name,
		Branch:        strings.TrimSpace(string(branchOut)),
		DefaultBranch: parsed.DefaultBranchRef.Name,
	}, nil
}
