package loop

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/process"
	"github.com/tarcisiopgs/lisa/internal/tracker"
)

// rollbackTimeout bounds the signal handler's attempt to roll an in-flight
// issue back to its previous status (spec §4.8).
const rollbackTimeout = 5 * time.Second

// HandleSignals registers SIGINT/SIGTERM handlers against pctx's active-
// cleanup slot. The first signal attempts to roll the in-flight issue back
// to its previous status within rollbackTimeout, then exits with code 130.
// A second signal, or one arriving while the first's rollback is still in
// flight, exits immediately without waiting. Returns a function that
// unregisters the handlers (for tests; production callers run until exit).
func HandleSignals(pctx *process.Context) (stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				if !pctx.MarkShuttingDown() {
					os.Exit(130)
				}
				go rollbackAndExit(pctx)
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func rollbackAndExit(pctx *process.Context) {
	if slot := pctx.Slot(); slot != nil {
		ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
		_ = slot.Tracker.UpdateStatus(ctx, slot.IssueID, slot.PreviousStatus)
		cancel()
	}
	os.Exit(130)
}

// OrphanSweep reclaims issues stranded in the in-progress state by a
// previous crash: it repeatedly asks the tracker for the "next" issue from a
// synthetic source whose pick_from is the real in_progress state, and moves
// each one back to the real pick_from. Bounded: stops on the first fetch
// error or once no more orphans are returned.
func OrphanSweep(ctx context.Context, tr tracker.Tracker, source model.SourceConfig) (reclaimed int, err error) {
	synthetic := source
	synthetic.PickFrom = source.InProgress

	for {
		issue, fetchErr := tr.FetchNextIssue(ctx, synthetic)
		if fetchErr != nil {
			return reclaimed, fetchErr
		}
		if issue == nil {
			return reclaimed, nil
		}
		if updateErr := tr.UpdateStatus(ctx, issue.ID, source.PickFrom); updateErr != nil {
			return reclaimed, updateErr
		}
		reclaimed++
	}
}
