// Package prompt assembles the text handed to the agent runner: issue body,
// dependency context, and (on re-invocation) worktree context. The
// guardrails section is appended later by the agent runner itself (§4.6),
// not here, since it must be re-read fresh before every attempt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// Options controls optional sections of the built prompt.
type Options struct {
	// WorktreeContext, when non-nil, is rendered and appended. Multi-repo
	// plan steps after the first pass the context gathered from the previous
	// step's worktree here; it is nil otherwise. Push recovery does not use
	// it (BuildPushRecovery takes its own context argument).
	WorktreeContext *worktree.Context

	// PriorStepContext describes earlier steps of a multi-repo plan (branch
	// names, PR URLs) so later steps can reference them.
	PriorStepContext string

	// ExtraInstructions is appended verbatim; the session executor uses it
	// for the final-step note. BuildPlanning and BuildPushRecovery do not
	// take Options.
	ExtraInstructions string
}

// Build assembles the full prompt for issue, excluding the guardrails
// section.
func Build(issue model.Issue, opts Options) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s: %s\n\n", issue.ID, issue.Title))
	if issue.URL != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n\n", issue.URL))
	}
	if issue.Description != "" {
		b.WriteString(issue.Description)
		b.WriteString("\n\n")
	}

	if issue.Dependency != nil {
		b.WriteString(formatDependency(*issue.Dependency))
	}

	if opts.PriorStepContext != "" {
		b.WriteString("## Prior Plan Steps\n\n")
		b.WriteString(opts.PriorStepContext)
		b.WriteString("\n\n")
	}

	if opts.WorktreeContext != nil {
		b.WriteString(opts.WorktreeContext.FormatForPrompt())
	}

	if opts.ExtraInstructions != "" {
		b.WriteString(opts.ExtraInstructions)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func formatDependency(dep model.Dependency) string {
	var b strings.Builder
	b.WriteString("## Dependency Context\n\n")
	b.WriteString(fmt.Sprintf("This issue is blocked by %s, which already has an open pull request on branch `%s`", dep.BlockerID, dep.BlockerBranch))
	if dep.BlockerPRURL != "" {
		b.WriteString(fmt.Sprintf(" (%s)", dep.BlockerPRURL))
	}
	b.WriteString(".\n")
	if len(dep.ChangedFiles) > 0 {
		b.WriteString("Files already touched by the blocker:\n")
		for _, f := range dep.ChangedFiles {
			b.WriteString(fmt.Sprintf("- %s\n", f))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// BuildPlanning assembles the prompt for a multi-repo planning invocation,
// asking the agent to emit a Plan file scoped to the configured repos.
func BuildPlanning(issue model.Issue, repoPaths []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s: %s\n\n", issue.ID, issue.Title))
	if issue.Description != "" {
		b.WriteString(issue.Description)
		b.WriteString("\n\n")
	}
	b.WriteString("## Planning Required\n\n")
	b.WriteString("This issue spans multiple repositories. Before making any changes, write a plan ")
	b.WriteString("file listing the ordered steps needed, one per repository, scoped to:\n\n")
	for _, r := range repoPaths {
		b.WriteString(fmt.Sprintf("- %s\n", r))
	}
	b.WriteString("\nEach step must name one of the repositories above and a one-line scope description.\n")
	return b.String()
}

// BuildPushRecovery assembles the prompt for a push-recovery re-invocation,
// containing the push failure output and asking the agent to fix the root
// cause and amend. wtContext, when non-nil, is the gathered context of the
// worktree the failed push ran in, so the agent sees what it already
// committed before being asked to amend it.
func BuildPushRecovery(issue model.Issue, pushOutput string, wtContext *worktree.Context) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s: push recovery\n\n", issue.ID))
	b.WriteString("The branch for this issue failed to push. Fix the root cause shown below and amend ")
	b.WriteString("the existing commit(s); do not create a new branch.\n\n")
	b.WriteString("## Push Output\n\n```\n")
	b.WriteString(strings.TrimSpace(pushOutput))
	b.WriteString("\n```\n")
	if wtContext != nil {
		b.WriteString("\n")
		b.WriteString(wtContext.FormatForPrompt())
	}
	return b.String()
}
