package worktree

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Context is structured pre-invocation context about a worktree: diff stat,
// changed/untracked files, and recent commits. It is consumed only by the
// prompt builder, never by control flow, grounded on the teacher's
// WorktreeContext/GatherContext.
type Context struct {
	Branch string
	Path   string

	DiffStat       string
	ChangedFiles   []string
	UntrackedFiles []string
	RecentCommits  []CommitInfo
}

// CommitInfo is one entry of recent commit history.
type CommitInfo struct {
	Hash    string
	Subject string
	Author  string
}

// ContextOptions controls what GatherContext collects.
type ContextOptions struct {
	IncludeDiffStat bool
	IncludeFileList bool
	IncludeCommits  int
}

// DefaultContextOptions returns options suitable for prompt consumption.
func DefaultContextOptions() ContextOptions {
	return ContextOptions{IncludeDiffStat: true, IncludeFileList: true, IncludeCommits: 5}
}

// GatherContext collects a Context for the worktree at wt using m's GitRunner.
// Individual git calls are best-effort: a failing sub-command leaves its
// field empty rather than failing the whole gather.
func (m *Manager) GatherContext(ctx context.Context, wt Worktree, opts ContextOptions) *Context {
	wc := &Context{Branch: wt.Branch, Path: wt.Path}

	if opts.IncludeDiffStat {
		if result, err := m.git.Run(ctx, []string{"diff", "--stat"}, wt.Path); err == nil && result != nil {
			wc.DiffStat = strings.TrimSpace(result.Stdout)
		}
	}

	if opts.IncludeFileList {
		if result, err := m.git.Run(ctx, []string{"diff", "--name-only", "HEAD"}, wt.Path); err == nil && result != nil {
			wc.ChangedFiles = splitNonEmpty(result.Stdout)
		}
		if result, err := m.git.Run(ctx, []string{"ls-files", "--others", "--exclude-standard"}, wt.Path); err == nil && result != nil {
			wc.UntrackedFiles = splitNonEmpty(result.Stdout)
		}
	}

	if opts.IncludeCommits > 0 {
		args := []string{"log", "-" + strconv.Itoa(opts.IncludeCommits), "--format=%H|%s|%an"}
		if result, err := m.git.Run(ctx, args, wt.Path); err == nil && result != nil {
			wc.RecentCommits = parseCommitLog(result.Stdout)
		}
	}

	return wc
}

// FormatForPrompt renders wc as a structured text section for inclusion in
// an agent prompt.
func (wc *Context) FormatForPrompt() string {
	var b strings.Builder

	b.WriteString("## Worktree Context\n\n")
	b.WriteString(fmt.Sprintf("**Branch:** %s\n", wc.Branch))
	b.WriteString(fmt.Sprintf("**Path:** %s\n\n", wc.Path))

	if wc.DiffStat != "" {
		b.WriteString("### Changes Summary\n```\n")
		b.WriteString(wc.DiffStat)
		b.WriteString("\n```\n\n")
	}

	if len(wc.ChangedFiles) > 0 {
		b.WriteString("### Modified Files\n")
		for _, f := range wc.ChangedFiles {
			b.WriteString(fmt.Sprintf("- %s\n", f))
		}
		b.WriteString("\n")
	}

	if len(wc.UntrackedFiles) > 0 {
		b.WriteString("### Untracked Files\n")
		for _, f := range wc.UntrackedFiles {
			b.WriteString(fmt.Sprintf("- %s\n", f))
		}
		b.WriteString("\n")
	}

	if len(wc.RecentCommits) > 0 {
		b.WriteString("### Recent Commits\n")
		for _, c := range wc.RecentCommits {
			hash := c.Hash
			if len(hash) > 8 {
				hash = hash[:8]
			}
			b.WriteString(fmt.Sprintf("- `%s` %s (%s)\n", hash, c.Subject, c.Author))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func splitNonEmpty(s string) []string {
	var result []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

func parseCommitLog(output string) []CommitInfo {
	var commits []CommitInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		commits = append(commits, CommitInfo{Hash: parts[0], Subject: parts[1], Author: parts[2]})
	}
	return commits
}
