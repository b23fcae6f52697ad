package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/platform"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial commit")
	// a bare "origin" to push to, so the push step has somewhere to land.
	remoteDir := t.TempDir()
	run2 := func(dir string, args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run2(remoteDir, "init", "--bare", "-b", "main")
	run("remote", "add", "origin", remoteDir)
	return dir
}

// manifestWritingAgent writes a manifest file naming the current branch
// before reporting success, simulating an agent that made a commit.
type manifestWritingAgent struct {
	cacheDir string
	branch   string
	commit   bool
}

func (a *manifestWritingAgent) Name() string                      { return "fake" }
func (a *manifestWritingAgent) SupportsNativeWorktree() bool       { return false }
func (a *manifestWritingAgent) IsAvailable(ctx context.Context) bool { return true }

func (a *manifestWritingAgent) Run(ctx context.Context, prompt string, opts agent.RunOptions) (agent.RunResult, error) {
	if a.commit {
		cmd := exec.Command("git", "commit", "--allow-empty", "-m", "agent change")
		cmd.Dir = opts.Cwd
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=agent", "GIT_AUTHOR_EMAIL=agent@example.com",
			"GIT_COMMITTER_NAME=agent", "GIT_COMMITTER_EMAIL=agent@example.com")
		if _, err := cmd.CombinedOutput(); err != nil {
			return agent.RunResult{}, err
		}
	}

	manifest := model.Manifest{Branch: a.branch}
	data, _ := json.Marshal(manifest)
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return agent.RunResult{}, err
	}
	if err := os.WriteFile(ManifestPath(a.cacheDir, opts.IssueID), data, 0o644); err != nil {
		return agent.RunResult{}, err
	}
	return agent.RunResult{Success: true, Output: "done"}, nil
}

type fakePlatform struct {
	prURL string

	openPRBranch string // branch that FindOpenPR reports as already having an open PR
	openPRURL    string

	lastPR platform.CreatePullRequestOptions
}

func (p *fakePlatform) CreatePullRequest(ctx context.Context, opts platform.CreatePullRequestOptions) (string, error) {
	p.lastPR = opts
	return p.prURL, nil
}
func (p *fakePlatform) FindOpenPR(ctx context.Context, repoPath, branch string) (string, error) {
	if p.openPRBranch != "" && branch == p.openPRBranch {
		return p.openPRURL, nil
	}
	return "", nil
}
func (p *fakePlatform) GetChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error) {
	return nil, nil
}
func (p *fakePlatform) GetRepoInfo(ctx context.Context, cwd string) (platform.RepoInfo, error) {
	return platform.RepoInfo{Owner: "acme", Repo: "widget", DefaultBranch: "main"}, nil
}

func TestExecuteSingleRepoWorktreeHappyPath(t *testing.T) {
	repo := initRepo(t)
	cacheDir := t.TempDir()
	branch := "feat/int-100-add-logging"

	fakeAgent := &manifestWritingAgent{cacheDir: cacheDir, branch: branch, commit: true}
	exec := &Executor{
		Platform: &fakePlatform{prURL: "https://github.com/acme/widget/pull/1"},
		Factory:  func(provider string) (agent.Agent, error) { return fakeAgent, nil },
		Worktree: worktree.NewManager(nil),
		Git:      &worktree.DefaultGitRunner{},
		ModelSpecs: []model.ModelSpec{{Provider: "fake"}},
		Workflow:   WorkflowWorktree,
		Repos:      []worktree.RepoSpec{{Name: "widget", Path: repo, BaseBranch: "main"}},
		BaseBranch: "main",
		CacheDir:   cacheDir,
	}

	issue := model.Issue{ID: "INT-100", Title: "Add logging"}
	result, err := exec.Execute(context.Background(), issue)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"https://github.com/acme/widget/pull/1"}, result.PRURLs)
	assert.Equal(t, "fake", result.ProviderUsed)

	// the worktree must be cleaned up on exit.
	worktrees, err := exec.Worktree.List(context.Background(), repo)
	require.NoError(t, err)
	assert.Len(t, worktrees, 1) // only the main checkout remains
}

func TestExecuteSingleRepoWorktreeFailsWithoutManifest(t *testing.T) {
	repo := initRepo(t)
	cacheDir := t.TempDir()

	noManifestAgent := &fakeNoManifestAgent{}
	exec := &Executor{
		Platform:   &fakePlatform{},
		Factory:    func(provider string) (agent.Agent, error) { return noManifestAgent, nil },
		Worktree:   worktree.NewManager(nil),
		Git:        &worktree.DefaultGitRunner{},
		ModelSpecs: []model.ModelSpec{{Provider: "fake"}},
		Workflow:   WorkflowWorktree,
		Repos:      []worktree.RepoSpec{{Name: "widget", Path: repo, BaseBranch: "main"}},
		BaseBranch: "main",
		CacheDir:   cacheDir,
	}

	_, err := exec.Execute(context.Background(), model.Issue{ID: "INT-101", Title: "No manifest"})
	require.Error(t, err)
}

type fakeNoManifestAgent struct{}

func (a *fakeNoManifestAgent) Name() string                      { return "fake" }
func (a *fakeNoManifestAgent) SupportsNativeWorktree() bool       { return false }
func (a *fakeNoManifestAgent) IsAvailable(ctx context.Context) bool { return true }
func (a *fakeNoManifestAgent) Run(ctx context.Context, prompt string, opts agent.RunOptions) (agent.RunResult, error) {
	return agent.RunResult{Success: true, Output: "done but no manifest"}, nil
}

func TestExecuteReturnsFailureOnTaskFault(t *testing.T) {
	repo := initRepo(t)
	cacheDir := t.TempDir()

	failingAgent := &fakeFailingAgent{}
	exec := &Executor{
		Platform:   &fakePlatform{},
		Factory:    func(provider string) (agent.Agent, error) { return failingAgent, nil },
		Worktree:   worktree.NewManager(nil),
		Git:        &worktree.DefaultGitRunner{},
		ModelSpecs: []model.ModelSpec{{Provider: "fake"}},
		Workflow:   WorkflowWorktree,
		Repos:      []worktree.RepoSpec{{Name: "widget", Path: repo, BaseBranch: "main"}},
		BaseBranch: "main",
		CacheDir:   cacheDir,
	}

	result, err := exec.Execute(context.Background(), model.Issue{ID: "INT-102", Title: "Broken"})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.PRURLs)
}

type fakeFailingAgent struct{}

func (a *fakeFailingAgent) Name() string                      { return "fake" }
func (a *fakeFailingAgent) SupportsNativeWorktree() bool       { return false }
func (a *fakeFailingAgent) IsAvailable(ctx context.Context) bool { return true }
func (a *fakeFailingAgent) Run(ctx context.Context, prompt string, opts agent.RunOptions) (agent.RunResult, error) {
	return agent.RunResult{Success: false, Output: "syntax error in generated code"}, nil
}

// branchCreatingAgent simulates a branch-mode agent run: it checks out a new
// branch, commits, and records the branch in the manifest, without any
// pre-made worktree.
type branchCreatingAgent struct {
	cacheDir string
	branch   string
}

func (a *branchCreatingAgent) Name() string                      { return "fake" }
func (a *branchCreatingAgent) SupportsNativeWorktree() bool       { return false }
func (a *branchCreatingAgent) IsAvailable(ctx context.Context) bool { return true }

func (a *branchCreatingAgent) Run(ctx context.Context, prompt string, opts agent.RunOptions) (agent.RunResult, error) {
	run := func(args ...string) error {
		cmd := exec.Command("git", args...)
		cmd.Dir = opts.Cwd
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=agent", "GIT_AUTHOR_EMAIL=agent@example.com",
			"GIT_COMMITTER_NAME=agent", "GIT_COMMITTER_EMAIL=agent@example.com")
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("git %v: %w: %s", args, err, out)
		}
		return nil
	}
	if err := run("checkout", "-b", a.branch); err != nil {
		return agent.RunResult{}, err
	}
	if err := run("commit", "--allow-empty", "-m", "agent change"); err != nil {
		return agent.RunResult{}, err
	}

	manifest := model.Manifest{Branch: a.branch}
	data, _ := json.Marshal(manifest)
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return agent.RunResult{}, err
	}
	if err := os.WriteFile(ManifestPath(a.cacheDir, opts.IssueID), data, 0o644); err != nil {
		return agent.RunResult{}, err
	}
	return agent.RunResult{Success: true, Output: "done"}, nil
}

func TestExecuteBranchModeUsesBlockerBranchAsPRBase(t *testing.T) {
	repo := initRepo(t)
	cacheDir := t.TempDir()

	blockerBranch := "feat/int-1-fix-blocker"
	runGit := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	runGit("branch", blockerBranch)

	fakeAgent := &branchCreatingAgent{cacheDir: cacheDir, branch: "feat/int-2-add-logging"}
	plat := &fakePlatform{
		prURL:        "https://github.com/acme/widget/pull/2",
		openPRBranch: blockerBranch,
		openPRURL:    "https://github.com/acme/widget/pull/1",
	}
	exec := &Executor{
		Platform:   plat,
		Factory:    func(provider string) (agent.Agent, error) { return fakeAgent, nil },
		Git:        &worktree.DefaultGitRunner{},
		ModelSpecs: []model.ModelSpec{{Provider: "fake"}},
		Workflow:   WorkflowBranch,
		Repos:      []worktree.RepoSpec{{Name: "widget", Path: repo, BaseBranch: "main"}},
		BaseBranch: "main",
		CacheDir:   cacheDir,
	}

	issue := model.Issue{ID: "INT-2", Title: "Add logging", Blockers: []string{"INT-1"}}
	result, err := exec.Execute(context.Background(), issue)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"https://github.com/acme/widget/pull/2"}, result.PRURLs)
	assert.Equal(t, blockerBranch, plat.lastPR.Base) // stacked on the blocker's branch, not "main"
}
