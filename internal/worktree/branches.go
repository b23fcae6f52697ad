package worktree

import (
	"context"
	"regexp"
	"strings"

	"github.com/tarcisiopgs/lisa/internal/model"
)

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateBranchName builds a deterministic, ASCII-only branch slug from an
// issue id and title: "feat/<lowercased-id>-<short-title-slug>".
func GenerateBranchName(issueID, title string) string {
	idSlug := slugify(issueID)
	titleSlug := slugify(title)
	if len(titleSlug) > 40 {
		titleSlug = strings.Trim(titleSlug[:40], "-")
	}
	if titleSlug == "" {
		return "feat/" + idSlug
	}
	return "feat/" + idSlug + "-" + titleSlug
}

func slugify(s string) string {
	lower := strings.ToLower(s)
	slug := slugNonAlnum.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// RepoSpec is one configured repository an issue may route to.
type RepoSpec struct {
	Name       string
	Path       string
	Match      string
	BaseBranch string
}

// DetermineRepoPath routes an issue to a configured repo: explicit
// issue.Repo field first, then a title-prefix match, then the first
// configured repo as default.
func DetermineRepoPath(repos []RepoSpec, issue model.Issue) (RepoSpec, bool) {
	if issue.Repo != "" {
		for _, r := range repos {
			if r.Name == issue.Repo {
				return r, true
			}
		}
	}

	for _, r := range repos {
		if r.Match != "" && strings.HasPrefix(issue.Title, r.Match) {
			return r, true
		}
	}

	if len(repos) > 0 {
		return repos[0], true
	}
	return RepoSpec{}, false
}

// BranchHit is one repo/branch pair detectFeatureBranches found.
type BranchHit struct {
	RepoPath string
	Branch   string
}

// DetectFeatureBranches scans the given repos for branches an agent may have
// created for issueID, in branch mode (no pre-made worktree). Three passes,
// in order of confidence: (1) any branch whose name contains the issue id;
// (2) any branch different from the repo's base; (3) git-history search for
// commits mentioning the issue id.
func DetectFeatureBranches(ctx context.Context, git GitRunner, repos []RepoSpec, issueID string, baseBranch string) ([]BranchHit, error) {
	var hits []BranchHit
	seen := map[string]bool{}

	add := func(repoPath, branch string) {
		key := repoPath + "\x00" + branch
		if seen[key] {
			return
		}
		seen[key] = true
		hits = append(hits, BranchHit{RepoPath: repoPath, Branch: branch})
	}

	for _, repo := range repos {
		branches, err := listLocalBranches(ctx, git, repo.Path)
		if err != nil {
			continue
		}

		// Pass 1: branch name contains the issue id.
		for _, b := range branches {
			if strings.Contains(strings.ToLower(b), strings.ToLower(issueID)) {
				add(repo.Path, b)
			}
		}

		// Pass 2: any branch differing from this repo's base.
		base := repo.BaseBranch
		if base == "" {
			base = baseBranch
		}
		for _, b := range branches {
			if b != base {
				add(repo.Path, b)
			}
		}

		// Pass 3: commit history mentioning the issue id.
		if commitBranch, err := findBranchByCommitMessage(ctx, git, repo.Path, issueID); err == nil && commitBranch != "" {
			add(repo.Path, commitBranch)
		}
	}

	return hits, nil
}

// FindBranchByIssueID returns the first local branch whose name contains
// issueID, used by the dependency resolver to locate a blocker's branch.
func FindBranchByIssueID(ctx context.Context, git GitRunner, repoPath, issueID string) (string, error) {
	branches, err := listLocalBranches(ctx, git, repoPath)
	if err != nil {
		return "", err
	}
	for _, b := range branches {
		if strings.Contains(strings.ToLower(b), strings.ToLower(issueID)) {
			return b, nil
		}
	}
	return "", nil
}

func listLocalBranches(ctx context.Context, git GitRunner, repoPath string) ([]string, error) {
	result, err := git.Run(ctx, []string{"branch", "--format=%(refname:short)"}, repoPath)
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

func findBranchByCommitMessage(ctx context.Context, git GitRunner, repoPath, issueID string) (string, error) {
	result, err := git.Run(ctx, []string{"log", "--all", "--grep=" + issueID, "--format=%H", "-n", "1"}, repoPath)
	if err != nil || strings.TrimSpace(result.Stdout) == "" {
		return "", err
	}

	commit := strings.TrimSpace(result.Stdout)
	branchResult, err := git.Run(ctx, []string{"branch", "--contains", commit, "--format=%(refname:short)"}, repoPath)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(branchResult.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
	return "", nil
}
