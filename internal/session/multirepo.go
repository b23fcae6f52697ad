package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/prompt"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// executeMultiRepoPlan implements the worktree-mode, multi-repo variant of
// spec §4.5: a planning phase that asks the agent to emit a Plan file, then
// one sequential single-repo worktree session per step, passing earlier
// steps' results into later prompts. If any step produces no PR, the whole
// session fails.
func (e *Executor) executeMultiRepoPlan(ctx context.Context, issue model.Issue) (model.SessionResult, error) {
	repoPaths := make([]string, 0, len(e.Repos))
	allowed := make(map[string]bool, len(e.Repos))
	byPath := make(map[string]int, len(e.Repos))
	for i, r := range e.Repos {
		repoPaths = append(repoPaths, r.Path)
		allowed[r.Path] = true
		byPath[r.Path] = i
	}

	planningPrompt := prompt.BuildPlanning(issue, repoPaths)
	runOpts := agent.RunOptions{
		Cwd:     e.Repos[0].Path,
		LogFile: e.logPath(issue.ID + "-plan"),
		IssueID: issue.ID,
	}

	fallback := agent.RunChain(ctx, agent.ChainOptions{
		Specs:      e.ModelSpecs,
		Prompt:     planningPrompt,
		Run:        runOpts,
		Factory:    e.Factory,
		Guardrails: e.Guardrails,
		IssueID:    issue.ID,
	})
	if !fallback.Success {
		return model.SessionResult{Success: false, ProviderUsed: fallback.ProviderUsed, Fallback: fallback}, nil
	}

	plan, ok, err := readPlan(e.CacheDir, issue.ID)
	if err != nil || !ok {
		return model.SessionResult{}, fmt.Errorf("agent reported plan success but wrote no plan for %s", issue.ID)
	}
	if err := validatePlan(plan, allowed); err != nil {
		return model.SessionResult{}, fmt.Errorf("invalid plan for %s: %w", issue.ID, err)
	}

	steps := orderedSteps(plan)
	var priorContext strings.Builder
	var allPRURLs []string
	var lastFallback = fallback
	var stepWT *worktree.Context

	for i, step := range steps {
		repo := e.Repos[byPath[step.RepoPath]]
		isLast := i == len(steps)-1

		stepIssue := issue
		stepIssue.Title = fmt.Sprintf("%s (%s)", issue.Title, step.Scope)

		result, wtContext, execErr := e.executeSingleRepoWorktree(ctx, stepIssue, repo, priorContext.String(), stepWT, isLast)
		if execErr != nil {
			return model.SessionResult{}, fmt.Errorf("plan step %d (%s): %w", step.Order, step.RepoPath, execErr)
		}
		lastFallback = result.Fallback

		if !result.Success || len(result.PRURLs) == 0 {
			return model.SessionResult{Success: false, ProviderUsed: result.ProviderUsed, Fallback: result.Fallback}, nil
		}

		allPRURLs = append(allPRURLs, result.PRURLs...)
		stepBranch := ""
		if wtContext != nil {
			stepBranch = wtContext.Branch
		}
		priorContext.WriteString(fmt.Sprintf("- Step %d (%s): scope=%q branch %s opened PR %s\n", step.Order, step.RepoPath, step.Scope, stepBranch, result.PRURLs[0]))
		stepWT = wtContext
	}

	return model.SessionResult{
		Success:      true,
		ProviderUsed: lastFallback.ProviderUsed,
		PRURLs:       allPRURLs,
		Fallback:     lastFallback,
	}, nil
}
