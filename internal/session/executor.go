// Package session implements the per-issue state machine: prepare a
// checkout (worktree or branch mode, single- or multi-repo), run the agent
// fallback chain, push and open a PR, and report a SessionResult. Grounded
// on the teacher's runAgentCore shape (worktree-create -> session-execute ->
// parse -> PR-create, defer-cleanup-on-failure), generalized from
// CI-failure fixing to arbitrary tracked issues.
package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/dependency"
	"github.com/tarcisiopgs/lisa/internal/guardrails"
	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/overseer"
	"github.com/tarcisiopgs/lisa/internal/platform"
	"github.com/tarcisiopgs/lisa/internal/prompt"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// Workflow selects between the two session skeleton variants (spec §4.5).
type Workflow string

const (
	WorkflowWorktree Workflow = "worktree"
	WorkflowBranch   Workflow = "branch"
)

// Executor runs one issue to completion as a single session. One Executor
// is shared across issues; it holds no per-issue state between calls.
type Executor struct {
	Platform   platform.Platform
	Factory    agent.Factory
	Guardrails *guardrails.Store
	Worktree   *worktree.Manager
	Git        worktree.GitRunner

	ModelSpecs []model.ModelSpec
	Workflow   Workflow
	Repos      []worktree.RepoSpec
	BaseBranch string
	Overseer   overseer.Config

	// CacheDir is where manifest/plan scratch files and per-session agent
	// logs (shared by every attempt of that session's chain) live, scoped
	// per project (see guardrails.PathForCWD for the sibling
	// derivation used by the guardrails store).
	CacheDir string
}

// Execute runs issue to completion, dispatching to the configured workflow.
func (e *Executor) Execute(ctx context.Context, issue model.Issue) (model.SessionResult, error) {
	if e.Workflow == WorkflowBranch {
		return e.executeBranchMode(ctx, issue)
	}

	if len(e.Repos) > 1 {
		return e.executeMultiRepoPlan(ctx, issue)
	}

	repo, ok := e.singleRepo(issue)
	if !ok {
		return model.SessionResult{}, fmt.Errorf("no configured repo for issue %s", issue.ID)
	}
	result, _, err := e.executeSingleRepoWorktree(ctx, issue, repo, "", nil, true)
	return result, err
}

func (e *Executor) singleRepo(issue model.Issue) (worktree.RepoSpec, bool) {
	return worktree.DetermineRepoPath(e.Repos, issue)
}

func (e *Executor) primaryAgentSupportsNativeWorktree(ctx context.Context) bool {
	if len(e.ModelSpecs) == 0 {
		return false
	}
	ag, err := e.Factory(e.ModelSpecs[0].Provider)
	if err != nil {
		return false
	}
	return ag.SupportsNativeWorktree()
}

func (e *Executor) resolveDependency(ctx context.Context, repoPath string, issue model.Issue, baseBranch string) *model.Dependency {
	if len(issue.Blockers) == 0 {
		return nil
	}

	findOpenPR := func(ctx context.Context, branch string) (string, error) {
		return e.Platform.FindOpenPR(ctx, repoPath, branch)
	}
	changedFiles := func(ctx context.Context, repoPath, base, head string) ([]string, error) {
		return e.Platform.GetChangedFiles(ctx, repoPath, base, head)
	}

	dep, err := dependency.Resolve(ctx, e.Git, repoPath, issue, baseBranch, findOpenPR, changedFiles)
	if err != nil {
		return nil
	}
	return dep
}

func (e *Executor) logPath(issueID string) string {
	return filepath.Join(e.CacheDir, "logs", fmt.Sprintf("%s-%s.log", issueID, uuid.New().String()))
}

// executeSingleRepoWorktree implements the worktree-mode, single-repo
// variant of spec §4.5. planContext, when non-empty, is injected as prior
// plan-step context (multi-repo mode); priorStepWT, when non-nil, is the
// gathered worktree context of the plan step that ran immediately before
// this one, so the agent can see what the prior step actually changed;
// isLastStep adds a note telling the agent this is the final step of the
// session. The prompt gives the agent no tracker instruction on any step;
// the main loop updates the tracker after the session. It returns the
// gathered context of its own worktree on success, for the next plan step
// to consume in turn.
func (e *Executor) executeSingleRepoWorktree(ctx context.Context, issue model.Issue, repo worktree.RepoSpec, planContext string, priorStepWT *worktree.Context, isLastStep bool) (model.SessionResult, *worktree.Context, error) {
	baseBranch := repo.BaseBranch
	if baseBranch == "" {
		baseBranch = e.BaseBranch
	}

	dep := e.resolveDependency(ctx, repo.Path, issue, baseBranch)
	issue.Dependency = dep

	prBase := baseBranch
	if dep != nil {
		prBase = dep.BlockerBranch
	}

	native := e.primaryAgentSupportsNativeWorktree(ctx)
	branch := worktree.GenerateBranchName(issue.ID, issue.Title)

	cwd := repo.Path
	var createdPath string
	if !native {
		path, err := e.Worktree.CreateWorktreeAtomic(ctx, repo.Path, branch, baseBranch)
		if err != nil {
			return model.SessionResult{}, nil, fmt.Errorf("create worktree: %w", err)
		}
		cwd = path
		createdPath = path
	}
	cleanup := func() {
		if createdPath != "" {
			_ = e.Worktree.RemoveWorktree(ctx, repo.Path, createdPath, branch)
		}
	}

	var extra string
	if isLastStep {
		extra = "Once your changes are complete and committed, this is the final step of this session."
	}
	builtPrompt := prompt.Build(issue, prompt.Options{PriorStepContext: planContext, WorktreeContext: priorStepWT, ExtraInstructions: extra})

	runOpts := agent.RunOptions{
		Cwd:               cwd,
		LogFile:           e.logPath(issue.ID),
		IssueID:           issue.ID,
		NativeWorktree:    native,
		OverseerEnabled:   e.Overseer.Enabled,
		OverseerInterval:  e.Overseer.CheckInterval,
		OverseerThreshold: e.Overseer.StuckThreshold,
	}

	fallback := agent.RunChain(ctx, agent.ChainOptions{
		Specs:      e.ModelSpecs,
		Prompt:     builtPrompt,
		Run:        runOpts,
		Factory:    e.Factory,
		Guardrails: e.Guardrails,
		IssueID:    issue.ID,
	})

	if !fallback.Success {
		cleanup()
		return model.SessionResult{Success: false, ProviderUsed: fallback.ProviderUsed, Fallback: fallback}, nil, nil
	}

	manifest, ok, err := readManifest(e.CacheDir, issue.ID)
	if err != nil || !ok {
		cleanup()
		return model.SessionResult{}, nil, fmt.Errorf("agent reported success but wrote no manifest for %s", issue.ID)
	}

	manifestRepoPath := repo.Path
	if manifest.RepoPath != "" {
		manifestRepoPath = manifest.RepoPath
	}

	prURL := manifest.PRURL
	if prURL == "" {
		push, pushErr := e.pushWithRecovery(ctx, cwd, manifest.Branch, issue, runOpts)
		if pushErr != nil {
			cleanup()
			return model.SessionResult{}, nil, pushErr
		}
		if !push.Success {
			cleanup()
			return model.SessionResult{Success: false, ProviderUsed: fallback.ProviderUsed, Fallback: push.Fallback}, nil, nil
		}

		repoInfo, infoErr := e.Platform.GetRepoInfo(ctx, manifestRepoPath)
		if infoErr != nil {
			cleanup()
			return model.SessionResult{}, nil, fmt.Errorf("resolve repo info: %w", infoErr)
		}

		title := manifest.PRTitle
		if title == "" {
			title = fmt.Sprintf("%s: %s", issue.ID, issue.Title)
		}
		body := manifest.PRBody
		if body == "" {
			body = issue.Description
		}

		createdURL, prErr := e.Platform.CreatePullRequest(ctx, platform.CreatePullRequestOptions{
			Owner: repoInfo.Owner,
			Repo:  repoInfo.Repo,
			Head:  manifest.Branch,
			Base:  prBase,
			Title: title,
			Body:  body,
		})
		if prErr != nil {
			cleanup()
			return model.SessionResult{}, nil, fmt.Errorf("create pull request: %w", prErr)
		}
		prURL = createdURL
	}

	var ownContext *worktree.Context
	if e.Worktree != nil {
		ownContext = e.Worktree.GatherContext(ctx, worktree.Worktree{Path: cwd, Branch: branch}, worktree.DefaultContextOptions())
	}
	cleanup()

	var prURLs []string
	if prURL != "" {
		prURLs = []string{prURL}
	}
	return model.SessionResult{
		Success:      true,
		ProviderUsed: fallback.ProviderUsed,
		PRURLs:       prURLs,
		Fallback:     fallback,
	}, ownContext, nil
}

// executeBranchMode implements the branch-mode variant: no pre-made
// worktree, the agent runs in the repo's normal checkout, and the branch to
// push is taken from the manifest when the agent wrote one; otherwise the
// branches it created are located afterward via DetectFeatureBranches.
func (e *Executor) executeBranchMode(ctx context.Context, issue model.Issue) (model.SessionResult, error) {
	repo, ok := e.singleRepo(issue)
	if !ok {
		return model.SessionResult{}, fmt.Errorf("no configured repo for issue %s", issue.ID)
	}

	baseBranch := repo.BaseBranch
	if baseBranch == "" {
		baseBranch = e.BaseBranch
	}

	dep := e.resolveDependency(ctx, repo.Path, issue, baseBranch)
	issue.Dependency = dep

	prBase := baseBranch
	if dep != nil {
		prBase = dep.BlockerBranch
	}

	builtPrompt := prompt.Build(issue, prompt.Options{})
	runOpts := agent.RunOptions{
		Cwd:               repo.Path,
		LogFile:           e.logPath(issue.ID),
		IssueID:           issue.ID,
		OverseerEnabled:   e.Overseer.Enabled,
		OverseerInterval:  e.Overseer.CheckInterval,
		OverseerThreshold: e.Overseer.StuckThreshold,
	}

	fallback := agent.RunChain(ctx, agent.ChainOptions{
		Specs:      e.ModelSpecs,
		Prompt:     builtPrompt,
		Run:        runOpts,
		Factory:    e.Factory,
		Guardrails: e.Guardrails,
		IssueID:    issue.ID,
	})

	if !fallback.Success {
		return model.SessionResult{Success: false, ProviderUsed: fallback.ProviderUsed, Fallback: fallback}, nil
	}

	manifest, ok, _ := readManifest(e.CacheDir, issue.ID)

	var hits []worktree.BranchHit
	if ok && manifest.Branch != "" {
		hits = []worktree.BranchHit{{RepoPath: repo.Path, Branch: manifest.Branch}}
	} else {
		found, err := worktree.DetectFeatureBranches(ctx, e.Git, e.Repos, issue.ID, e.BaseBranch)
		if err != nil {
			return model.SessionResult{}, fmt.Errorf("detect feature branches: %w", err)
		}
		hits = found
	}

	var prURLs []string
	for _, hit := range hits {
		push, pushErr := e.pushWithRecovery(ctx, hit.RepoPath, hit.Branch, issue, runOpts)
		if pushErr != nil {
			return model.SessionResult{}, pushErr
		}
		if !push.Success {
			continue
		}

		repoInfo, infoErr := e.Platform.GetRepoInfo(ctx, hit.RepoPath)
		if infoErr != nil {
			continue
		}

		prURL, prErr := e.Platform.CreatePullRequest(ctx, platform.CreatePullRequestOptions{
			Owner: repoInfo.Owner,
			Repo:  repoInfo.Repo,
			Head:  hit.Branch,
			Base:  prBase,
			Title: fmt.Sprintf("%s: %s", issue.ID, issue.Title),
			Body:  issue.Description,
		})
		if prErr != nil {
			continue
		}
		prURLs = append(prURLs, prURL)
	}

	return model.SessionResult{
		Success:      true,
		ProviderUsed: fallback.ProviderUsed,
		PRURLs:       prURLs,
		Fallback:     fallback,
	}, nil
}
