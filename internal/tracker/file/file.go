// Package file implements tracker.Tracker backed by a single JSON file, a
// reference binding grounded on the teacher's issue.Tracker so the module
// is runnable end-to-end without an operator writing an adapter first.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tarcisiopgs/lisa/internal/model"
)

type record struct {
	Issue  model.Issue `json:"issue"`
	Status string      `json:"status"`
	Labels []string    `json:"labels"`
	PRURLs []string    `json:"prUrls"`
}

type trackerFile struct {
	Records []*record `json:"records"`
}

// Tracker is a mutex-protected, JSON-file-backed tracker.Tracker.
type Tracker struct {
	mu   sync.Mutex
	path string
	byID map[string]*record
}

// New loads (or initializes) a Tracker backed by path.
func New(path string) (*Tracker, error) {
	t := &Tracker{path: path, byID: map[string]*record{}}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tracker file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var f trackerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse tracker file: %w", err)
	}
	for _, r := range f.Records {
		t.byID[r.Issue.ID] = r
	}
	return nil
}

func (t *Tracker) saveLocked() error {
	f := trackerFile{Records: make([]*record, 0, len(t.byID))}
	for _, r := range t.byID {
		f.Records = append(f.Records, r)
	}
	sort.Slice(f.Records, func(i, j int) bool { return f.Records[i].Issue.ID < f.Records[j].Issue.ID })

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create tracker dir: %w", err)
	}
	return os.WriteFile(t.path, data, 0o644)
}

// Put registers or replaces an issue record, for test fixtures and initial
// seeding. Not part of the tracker.Tracker interface.
func (t *Tracker) Put(issue model.Issue, status string, labels []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[issue.ID] = &record{Issue: issue, Status: status, Labels: labels}
	return t.saveLocked()
}

// FetchNextIssue implements tracker.Tracker.
func (t *Tracker) FetchNextIssue(ctx context.Context, source model.SourceConfig) (*model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := t.byID[id]
		if r.Status != source.PickFrom {
			continue
		}
		if !hasAllLabels(r.Labels, source.Labels) {
			continue
		}
		if t.hasOpenBlockerLocked(r.Issue.Blockers, source.Done) {
			continue
		}
		issueCopy := r.Issue
		return &issueCopy, nil
	}
	return nil, nil
}

func (t *Tracker) hasOpenBlockerLocked(blockers []string, doneState string) bool {
	for _, b := range blockers {
		if r, ok := t.byID[b]; ok && r.Status != doneState {
			return true
		}
	}
	return false
}

func hasAllLabels(have, want []string) bool {
	set := map[string]bool{}
	for _, l := range have {
		set[l] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// FetchIssueByID implements tracker.Tracker, accepting either a bare id or a
// canonical URL (the trailing path segment is treated as the id).
func (t *Tracker) FetchIssueByID(ctx context.Context, id string) (*model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bareID := id
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		bareID = id[idx+1:]
	}

	r, ok := t.byID[bareID]
	if !ok {
		return nil, nil
	}
	issueCopy := r.Issue
	return &issueCopy, nil
}

// UpdateStatus implements tracker.Tracker.
func (t *Tracker) UpdateStatus(ctx context.Context, id, targetState string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("issue %s not found", id)
	}
	r.Status = targetState
	return t.saveLocked()
}

// AttachPullRequest implements tracker.Tracker.
func (t *Tracker) AttachPullRequest(ctx context.Context, id, prURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("issue %s not found", id)
	}
	r.PRURLs = append(r.PRURLs, prURL)
	return t.saveLocked()
}

// CompleteIssue implements tracker.Tracker.
func (t *Tracker) CompleteIssue(ctx context.Context, id, doneState, removeLabel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("issue %s not found", id)
	}
	r.Status = doneState
	if removeLabel != "" {
		r.Labels = removeLabelFrom(r.Labels, removeLabel)
	}
	return t.saveLocked()
}

// RemoveLabel implements tracker.Tracker, idempotently.
func (t *Tracker) RemoveLabel(ctx context.Context, id, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byID[id]
	if !ok {
		return nil
	}
	r.Labels = removeLabelFrom(r.Labels, label)
	return t.saveLocked()
}

func removeLabelFrom(labels []string, label string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}

// ListIssues implements tracker.Tracker.
func (t *Tracker) ListIssues(ctx context.Context, source model.SourceConfig) ([]model.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []model.Issue
	for _, r := range t.byID {
		if !hasAllLabels(r.Labels, source.Labels) {
			continue
		}
		result = append(result, r.Issue)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
