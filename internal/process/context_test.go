package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotLifecycle(t *testing.T) {
	ctx := New("", 0)
	assert.Nil(t, ctx.Slot())

	ctx.SetSlot(CleanupSlot{IssueID: "INT-1", PreviousStatus: "pick_from"})
	slot := ctx.Slot()
	require.NotNil(t, slot)
	assert.Equal(t, "INT-1", slot.IssueID)

	ctx.ClearSlot()
	assert.Nil(t, ctx.Slot())
}

func TestMarkShuttingDownOnlyFirstCallerWins(t *testing.T) {
	ctx := New("", 0)

	assert.True(t, ctx.MarkShuttingDown())
	assert.False(t, ctx.MarkShuttingDown())
	assert.True(t, ctx.ShuttingDown())
}

func TestEmitDropsWhenDisabledOrFull(t *testing.T) {
	disabled := New("", 0)
	disabled.Emit(Event{Kind: EventStarted}) // must not panic or block

	enabled := New("", 1)
	enabled.Emit(Event{Kind: EventStarted})
	enabled.Emit(Event{Kind: EventCompleted}) // channel full, dropped silently

	select {
	case e := <-enabled.Events():
		assert.Equal(t, EventStarted, e.Kind)
	default:
		t.Fatal("expected buffered event")
	}
}
