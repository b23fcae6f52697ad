// Package overseer watches a running agent child process and kills it if
// its working tree stops changing, so a hung agent doesn't block the loop
// forever.
package overseer

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tarcisiopgs/lisa/internal/classify"
)

// Config controls the watchdog's polling cadence and patience.
type Config struct {
	Enabled        bool
	CheckInterval  time.Duration
	StuckThreshold time.Duration
}

// DefaultConfig matches the spec's defaults: check every 30s, kill after
// 300s of an unchanged tree.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		CheckInterval:  30 * time.Second,
		StuckThreshold: 300 * time.Second,
	}
}

// Snapshotter computes a deterministic snapshot of a working tree's state.
// The default implementation runs `git status --porcelain` plus HEAD.
type Snapshotter func(ctx context.Context, cwd string) (string, error)

// DefaultSnapshotter shells out to git. Errors are returned to the caller,
// which treats them as "unchanged" (swallowed, not fatal).
func DefaultSnapshotter(ctx context.Context, cwd string) (string, error) {
	status, err := runGit(ctx, cwd, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	head, err := runGit(ctx, cwd, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return head + "\n" + status, nil
}

func runGit(ctx context.Context, cwd string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = cwd
	out, err := cmd.Output()
	return string(out), err
}

// Handle controls a running watchdog.
type Handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	wasKilled atomic.Bool
	stopOnce  sync.Once
}

// Stop cancels the watchdog. Idempotent.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

// WasKilled is stable after the process exits: true if the overseer sent
// SIGTERM to the supervised process.
func (h *Handle) WasKilled() bool {
	return h.wasKilled.Load()
}

// Start begins supervising process in cwd using cfg. It fires at most once:
// the first time the snapshot is unchanged for StuckThreshold, it sends
// SIGTERM and stops watching. Snapshot-fetch errors are swallowed, not
// treated as "stuck". The watchdog never blocks the caller; it runs on its
// own goroutine until Stop is called or it fires.
func Start(process *exec.Cmd, cwd string, cfg Config, snapshot Snapshotter) *Handle {
	h := &Handle{done: make(chan struct{})}

	if !cfg.Enabled || process == nil {
		close(h.done)
		h.cancel = func() {}
		return h
	}
	if snapshot == nil {
		snapshot = DefaultSnapshotter
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go h.watch(ctx, process, cwd, cfg, snapshot)
	return h
}

func (h *Handle) watch(ctx context.Context, process *exec.Cmd, cwd string, cfg Config, snapshot Snapshotter) {
	defer close(h.done)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	var lastSnapshot string
	var unchangedSince time.Time
	haveSnapshot := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, err := snapshot(ctx, cwd)
			if err != nil {
				continue
			}

			now := time.Now()
			if !haveSnapshot || cur != lastSnapshot {
				lastSnapshot = cur
				unchangedSince = now
				haveSnapshot = true
				continue
			}

			if now.Sub(unchangedSince) >= cfg.StuckThreshold {
				h.kill(process)
				return
			}
		}
	}
}

func (h *Handle) kill(process *exec.Cmd) {
	h.wasKilled.Store(true)
	if process.Process != nil {
		_ = process.Process.Signal(syscall.SIGTERM)
	}
}

// Sentinel returns the marker the caller should append to a killed
// process's captured output so classify.Eligible marks it eligible for
// fallback.
func Sentinel() string {
	return "[" + classify.OverseerSentinel + ": process killed by overseer for a stuck working tree]"
}
