package file

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarcisiopgs/lisa/internal/model"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := New(filepath.Join(t.TempDir(), "issues.json"))
	require.NoError(t, err)
	return tr
}

func testSource() model.SourceConfig {
	return model.SourceConfig{PickFrom: "pick_from", InProgress: "in_progress", Done: "done"}
}

func TestFetchNextIssueRespectsLabelsAndBlockers(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Put(model.Issue{ID: "INT-1"}, "pick_from", []string{"lisa"}))
	require.NoError(t, tr.Put(model.Issue{ID: "INT-2", Blockers: []string{"INT-1"}}, "pick_from", []string{"lisa"}))
	require.NoError(t, tr.Put(model.Issue{ID: "INT-3"}, "pick_from", []string{"other"}))

	issue, err := tr.FetchNextIssue(ctx, model.SourceConfig{PickFrom: "pick_from", Labels: []string{"lisa"}, Done: "done"})
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, "INT-1", issue.ID) // INT-2 is blocked, INT-3 lacks the label

	require.NoError(t, tr.UpdateStatus(ctx, "INT-1", "done"))
	issue, err = tr.FetchNextIssue(ctx, model.SourceConfig{PickFrom: "pick_from", Labels: []string{"lisa"}, Done: "done"})
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, "INT-2", issue.ID)
}

func TestFetchNextIssueHonorsConfiguredDoneState(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Put(model.Issue{ID: "INT-1"}, "resolved", nil))
	require.NoError(t, tr.Put(model.Issue{ID: "INT-2", Blockers: []string{"INT-1"}}, "pick_from", nil))

	issue, err := tr.FetchNextIssue(ctx, model.SourceConfig{PickFrom: "pick_from", Done: "resolved"})
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, "INT-2", issue.ID) // blocker's status matches the configured done state, not the literal "done"
}

func TestFetchIssueByIDAcceptsURL(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Put(model.Issue{ID: "INT-1", URL: "https://tracker.example.com/issue/INT-1"}, "pick_from", nil))

	issue, err := tr.FetchIssueByID(ctx, "https://tracker.example.com/issue/INT-1")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, "INT-1", issue.ID)

	issue, err = tr.FetchIssueByID(ctx, "INT-1")
	require.NoError(t, err)
	require.NotNil(t, issue)
}

func TestCompleteIssueRemovesLabelAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.json")
	tr, err := New(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tr.Put(model.Issue{ID: "INT-1"}, "in_progress", []string{"lisa", "keep"}))
	require.NoError(t, tr.CompleteIssue(ctx, "INT-1", "done", "lisa"))

	reloaded, err := New(path)
	require.NoError(t, err)
	issue, err := reloaded.FetchIssueByID(ctx, "INT-1")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.NotContains(t, reloaded.byID["INT-1"].Labels, "lisa")
	assert.Contains(t, reloaded.byID["INT-1"].Labels, "keep")
	assert.Equal(t, "done", reloaded.byID["INT-1"].Status)
}

func TestRemoveLabelIsIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Put(model.Issue{ID: "INT-1"}, "pick_from", []string{"lisa"}))

	require.NoError(t, tr.RemoveLabel(ctx, "INT-1", "lisa"))
	require.NoError(t, tr.RemoveLabel(ctx, "INT-1", "lisa"))
	require.NoError(t, tr.RemoveLabel(ctx, "does-not-exist", "lisa"))
}
