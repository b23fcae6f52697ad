package overseer

import (
	"context"
	"os/exec"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sleepCmd(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep binary unavailable: %v", err)
	}
	return cmd
}

func TestOverseerKillsOnConstantSnapshot(t *testing.T) {
	cmd := sleepCmd(t)
	defer cmd.Process.Kill()

	cfg := Config{Enabled: true, CheckInterval: 50 * time.Millisecond, StuckThreshold: 150 * time.Millisecond}
	constant := func(ctx context.Context, cwd string) (string, error) { return "same", nil }

	h := Start(cmd, "", cfg, constant)
	deadline := time.After(2 * time.Second)
	for !h.WasKilled() {
		select {
		case <-deadline:
			t.Fatal("overseer never killed the process")
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.Stop()
	assert.True(t, h.WasKilled())
}

func TestOverseerNeverKillsOnChangingSnapshot(t *testing.T) {
	cmd := sleepCmd(t)
	defer cmd.Process.Kill()

	cfg := Config{Enabled: true, CheckInterval: 20 * time.Millisecond, StuckThreshold: 60 * time.Millisecond}
	var counter atomic.Int64
	changing := func(ctx context.Context, cwd string) (string, error) {
		return strconv.FormatInt(counter.Add(1), 10), nil
	}

	h := Start(cmd, "", cfg, changing)
	time.Sleep(300 * time.Millisecond)
	h.Stop()
	assert.False(t, h.WasKilled())
}

func TestHandleStopIsIdempotent(t *testing.T) {
	cmd := sleepCmd(t)
	defer cmd.Process.Kill()

	h := Start(cmd, "", Config{Enabled: true, CheckInterval: time.Second, StuckThreshold: time.Minute}, nil)
	h.Stop()
	h.Stop()
}

func TestDisabledOverseerNeverKills(t *testing.T) {
	cmd := sleepCmd(t)
	defer cmd.Process.Kill()

	h := Start(cmd, "", Config{Enabled: false}, nil)
	h.Stop()
	assert.False(t, h.WasKilled())
}
