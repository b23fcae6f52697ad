// Package guardrails implements the rolling, process-wide append-only log
// of prior agent failures that gets injected into subsequent prompts.
package guardrails

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tarcisiopgs/lisa/internal/model"
)

// MaxEntries bounds the rolling log; the oldest entries are discarded on
// overflow.
const MaxEntries = 20

const sectionHeader = "## Avoid these known pitfalls"

// Store is a mutex-protected, file-backed ring buffer of GuardrailsEntry.
// Writes only happen from the main thread between agent invocations; reads
// happen from the agent runner before an invocation, so no cross-process
// locking is attempted.
type Store struct {
	mu   sync.Mutex
	path string
}

// PathForCWD derives a deterministic guardrails file path from the current
// working directory, under the user cache directory, so unrelated projects
// never share a guardrails log.
func PathForCWD(cwd string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	sum := sha256.Sum256([]byte(cwd))
	project := fmt.Sprintf("%x", sum[:8])
	return filepath.Join(cacheDir, "lisa", project, "guardrails.md"), nil
}

// New opens (without requiring existence) a Store at path, migrating a
// legacy in-project location if one is found and the new location is empty.
func New(path string, legacyPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create guardrails dir: %w", err)
	}

	if legacyPath != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if data, legacyErr := os.ReadFile(legacyPath); legacyErr == nil {
				_ = os.WriteFile(path, data, 0o644)
			}
		}
	}

	return &Store{path: path}, nil
}

// Append adds entry to the tail of the log, truncating to the most recent
// MaxEntries.
func (s *Store) Append(entry model.GuardrailsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readEntries()
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	return s.writeEntries(entries)
}

// ReadSection renders the current log as a prompt fragment. Returns an
// empty string if the log is absent or empty.
func (s *Store) ReadSection() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readEntries()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(sectionHeader + "\n\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("- [%s] issue=%s provider=%s category=%s\n",
			e.Date.UTC().Format(time.RFC3339), e.IssueID, e.Provider, e.Category))
		if e.Context != "" {
			b.WriteString("  " + strings.ReplaceAll(strings.TrimSpace(e.Context), "\n", "\n  ") + "\n")
		}
	}
	return b.String(), nil
}

func (s *Store) readEntries() ([]model.GuardrailsEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guardrails file: %w", err)
	}
	return parseEntries(string(data)), nil
}

func (s *Store) writeEntries(entries []model.GuardrailsEntry) error {
	var b strings.Builder
	b.WriteString(sectionHeader + "\n\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("- [%s] issue=%s provider=%s category=%s\n",
			e.Date.UTC().Format(time.RFC3339), e.IssueID, e.Provider, e.Category))
		if e.Context != "" {
			b.WriteString("  " + strings.ReplaceAll(strings.TrimSpace(e.Context), "\n", "\n  ") + "\n")
		}
	}
	return os.WriteFile(s.path, []byte(b.String()), 0o644)
}

// parseEntries parses the markdown produced by writeEntries back into
// entries. Lines that don't match the expected "- [date] ..." shape are
// folded into the Context of the preceding entry (continuation lines).
func parseEntries(data string) []model.GuardrailsEntry {
	var entries []model.GuardrailsEntry
	lines := strings.Split(data, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "- [") {
			entries = append(entries, parseEntryLine(line))
		} else if len(entries) > 0 && strings.HasPrefix(line, "  ") {
			last := &entries[len(entries)-1]
			trimmed := strings.TrimPrefix(line, "  ")
			if last.Context != "" {
				last.Context += "\n"
			}
			last.Context += trimmed
		}
	}
	return entries
}

func parseEntryLine(line string) model.GuardrailsEntry {
	var e model.GuardrailsEntry
	end := strings.Index(line, "]")
	if end < 0 {
		return e
	}
	dateStr := strings.TrimPrefix(line[:end], "- [")
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		e.Date = t
	}

	rest := strings.TrimSpace(line[end+1:])
	for _, field := range strings.Fields(rest) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "issue":
			e.IssueID = kv[1]
		case "provider":
			e.Provider = kv[1]
		case "category":
			e.Category = model.ErrorCategory(kv[1])
		}
	}
	return e
}
