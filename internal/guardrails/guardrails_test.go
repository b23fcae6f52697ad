package guardrails

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarcisiopgs/lisa/internal/model"
)

func TestAppendAndReadSection(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "guardrails.md"), "")
	require.NoError(t, err)

	section, err := store.ReadSection()
	require.NoError(t, err)
	assert.Empty(t, section)

	err = store.Append(model.GuardrailsEntry{
		IssueID:  "INT-1",
		Date:     time.Now(),
		Provider: "claude",
		Category: model.ErrorEligible,
		Context:  "429 Too Many Requests",
	})
	require.NoError(t, err)

	section, err = store.ReadSection()
	require.NoError(t, err)
	assert.Contains(t, section, "Avoid these known pitfalls")
	assert.Contains(t, section, "INT-1")
	assert.Contains(t, section, "429 Too Many Requests")
}

func TestAppendTruncatesToMaxEntries(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "guardrails.md"), "")
	require.NoError(t, err)

	for i := 0; i < MaxEntries+10; i++ {
		err := store.Append(model.GuardrailsEntry{
			IssueID:  "INT-1",
			Date:     time.Now(),
			Provider: "claude",
			Category: model.ErrorEligible,
		})
		require.NoError(t, err)
	}

	entries, err := store.readEntries()
	require.NoError(t, err)
	assert.Len(t, entries, MaxEntries)
}

func TestMigratesLegacyLocation(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "legacy.md")
	content := "## Avoid these known pitfalls\n\n- [2024-01-01T00:00:00Z] issue=INT-9 provider=claude category=eligible\n"
	require.NoError(t, os.WriteFile(legacy, []byte(content), 0o644))

	store, err := New(filepath.Join(dir, "new", "guardrails.md"), legacy)
	require.NoError(t, err)

	section, err := store.ReadSection()
	require.NoError(t, err)
	assert.Contains(t, section, "INT-9")
}
