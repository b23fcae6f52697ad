package worktree

import "context"

// UndoStep is one reversible action taken while preparing a worktree.
type UndoStep func()

// AtomicOp accumulates undo steps while a multi-step preparation is in
// flight, so a failure partway through can be rolled back cleanly instead
// of leaving a half-created worktree or branch behind.
type AtomicOp struct {
	undoSteps []UndoStep
	committed bool
}

// NewAtomicOp starts a new atomic preparation.
func NewAtomicOp() *AtomicOp {
	return &AtomicOp{}
}

// AddUndo registers a step to run if Rollback is called before Commit.
func (a *AtomicOp) AddUndo(step UndoStep) {
	a.undoSteps = append(a.undoSteps, step)
}

// Commit marks the operation successful; Rollback becomes a no-op after this.
func (a *AtomicOp) Commit() {
	a.committed = true
}

// Rollback runs undo steps in reverse order. No-op if already committed.
func (a *AtomicOp) Rollback() {
	if a.committed {
		return
	}
	for i := len(a.undoSteps) - 1; i >= 0; i-- {
		a.undoSteps[i]()
	}
}

// CreateWorktreeAtomic wraps CreateWorktree with rollback-on-failure: if
// worktree creation partially succeeds (branch created, worktree add fails)
// the branch is pruned before the error is returned.
func (m *Manager) CreateWorktreeAtomic(ctx context.Context, repoRoot, branch, baseBranch string) (path string, err error) {
	op := NewAtomicOp()
	defer func() {
		if err != nil {
			op.Rollback()
		}
	}()

	op.AddUndo(func() {
		_ = m.RemoveWorktree(ctx, repoRoot, path, branch)
	})

	path, err = m.CreateWorktree(ctx, repoRoot, branch, baseBranch)
	if err != nil {
		return "", err
	}

	op.Commit()
	return path, nil
}
