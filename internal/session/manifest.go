package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tarcisiopgs/lisa/internal/model"
)

// ManifestPath returns the per-issue manifest path inside cacheDir, avoiding
// cross-session collisions (spec §4.5 "manifest/plan retrieval policy").
func ManifestPath(cacheDir, issueID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("manifest-%s.json", issueID))
}

// PlanPath returns the per-issue plan path inside cacheDir.
func PlanPath(cacheDir, issueID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("plan-%s.json", issueID))
}

// readManifest reads and removes the manifest file, if present. A missing
// manifest is reported via ok=false, not an error: callers decide whether
// that's fatal (worktree mode) or expected (branch mode, before the
// detectFeatureBranches fallback).
func readManifest(cacheDir, issueID string) (m model.Manifest, ok bool, err error) {
	path := ManifestPath(cacheDir, issueID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.Manifest{}, false, nil
	}
	if err != nil {
		return model.Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Manifest{}, false, fmt.Errorf("parse manifest: %w", err)
	}
	_ = os.Remove(path)
	return m, true, nil
}

func readPlan(cacheDir, issueID string) (model.Plan, bool, error) {
	path := PlanPath(cacheDir, issueID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.Plan{}, false, nil
	}
	if err != nil {
		return model.Plan{}, false, fmt.Errorf("read plan: %w", err)
	}
	var p model.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Plan{}, false, fmt.Errorf("parse plan: %w", err)
	}
	_ = os.Remove(path)
	return p, true, nil
}

// validatePlan ensures every step's RepoPath is one of the configured repos
// and that steps form a contiguous 1..n order.
func validatePlan(plan model.Plan, repoPaths map[string]bool) error {
	if len(plan.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	orders := make([]int, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if !repoPaths[step.RepoPath] {
			return fmt.Errorf("plan step references unconfigured repo %q", step.RepoPath)
		}
		orders = append(orders, step.Order)
	}

	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return fmt.Errorf("plan steps are not a contiguous 1..n order: got %v", orders)
		}
	}

	return nil
}

// orderedSteps returns plan.Steps sorted by Order.
func orderedSteps(plan model.Plan) []model.PlanStep {
	steps := append([]model.PlanStep{}, plan.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}
