package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

func TestBuildIncludesDependencyContext(t *testing.T) {
	issue := model.Issue{
		ID:          "INT-2",
		Title:       "consume endpoint",
		Description: "Add a client for the new endpoint.",
		Dependency: &model.Dependency{
			BlockerID:     "INT-1",
			BlockerBranch: "lisa/int-1",
			BlockerPRURL:  "https://github.com/acme/api/pull/1",
			ChangedFiles:  []string{"api/handler.go"},
		},
	}

	out := Build(issue, Options{})

	assert.Contains(t, out, "INT-2: consume endpoint")
	assert.Contains(t, out, "Add a client for the new endpoint.")
	assert.Contains(t, out, "INT-1")
	assert.Contains(t, out, "lisa/int-1")
	assert.Contains(t, out, "api/handler.go")
}

func TestBuildOmitsDependencySectionWhenAbsent(t *testing.T) {
	issue := model.Issue{ID: "INT-3", Title: "standalone"}

	out := Build(issue, Options{})

	assert.NotContains(t, out, "Dependency Context")
}

func TestBuildIncludesWorktreeContext(t *testing.T) {
	issue := model.Issue{ID: "INT-1", Title: "fix bug"}
	wc := &worktree.Context{Branch: "lisa/int-1", Path: "/tmp/wt", DiffStat: "1 file changed"}

	out := Build(issue, Options{WorktreeContext: wc})

	assert.Contains(t, out, "Worktree Context")
	assert.Contains(t, out, "1 file changed")
}

func TestBuildPlanningListsRepos(t *testing.T) {
	issue := model.Issue{ID: "INT-4", Title: "cross-repo change"}

	out := BuildPlanning(issue, []string{"api", "web"})

	assert.Contains(t, out, "api")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "Planning Required")
}

func TestBuildPushRecoveryIncludesOutput(t *testing.T) {
	out := BuildPushRecovery(model.Issue{ID: "INT-1"}, "husky: pre-push lint failed", nil)

	assert.Contains(t, out, "push recovery")
	assert.Contains(t, out, "husky: pre-push lint failed")
}

func TestBuildPushRecoveryIncludesWorktreeContext(t *testing.T) {
	wc := &worktree.Context{Branch: "lisa/int-1", Path: "/tmp/wt", DiffStat: "1 file changed"}

	out := BuildPushRecovery(model.Issue{ID: "INT-1"}, "husky: pre-push lint failed", wc)

	assert.Contains(t, out, "Worktree Context")
	assert.Contains(t, out, "1 file changed")
}
