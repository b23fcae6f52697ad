// Package process models the process-wide state the source's module-level
// globals would have held: the active-cleanup slot, the shutdown flag, the
// guardrails file path, and the outgoing event stream. One Context is built
// at startup and passed down; only the signal handler owns the slot.
package process

import (
	"sync"
	"sync/atomic"

	"github.com/tarcisiopgs/lisa/internal/tracker"
)

// CleanupSlot is the record the signal handler reads to roll an in-flight
// session's issue back to its previous state.
type CleanupSlot struct {
	IssueID        string
	PreviousStatus string
	Tracker        tracker.Tracker
}

// Event is one entry on the outgoing event stream a TUI would subscribe to.
// The core never blocks on delivery: Emit drops the event if the channel is
// full rather than stall the loop.
type Event struct {
	Kind    EventKind
	IssueID string
	Detail  string
}

// EventKind enumerates the moments the loop reports.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventReverted  EventKind = "reverted"
	EventOutput    EventKind = "output"
	EventEmpty     EventKind = "empty"
	EventDone      EventKind = "done"
)

// Context is the process-wide state shared between the main loop and the
// signal handler.
type Context struct {
	GuardrailsPath string

	shuttingDown atomic.Bool

	mu   sync.Mutex
	slot *CleanupSlot

	events chan Event
}

// New builds a Context with a buffered event channel of the given capacity.
// A capacity of 0 disables the event stream (Emit becomes a no-op).
func New(guardrailsPath string, eventBuffer int) *Context {
	c := &Context{GuardrailsPath: guardrailsPath}
	if eventBuffer > 0 {
		c.events = make(chan Event, eventBuffer)
	}
	return c
}

// Events returns the outgoing event channel, or nil if disabled.
func (c *Context) Events() <-chan Event {
	return c.events
}

// Emit publishes an event without blocking; it is dropped if the channel is
// full or disabled.
func (c *Context) Emit(e Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- e:
	default:
	}
}

// SetSlot populates the active-cleanup slot. Called by the main loop right
// after it moves an issue to in progress, before the session runs.
func (c *Context) SetSlot(slot CleanupSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = &slot
}

// ClearSlot empties the active-cleanup slot. Called by the main loop on its
// last state change for the issue (completion, rollback, or exhaustion stop).
func (c *Context) ClearSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = nil
}

// Slot returns a copy of the current slot, or nil if empty.
func (c *Context) Slot() *CleanupSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot == nil {
		return nil
	}
	slotCopy := *c.slot
	return &slotCopy
}

// ShuttingDown reports whether a shutdown has already been requested.
func (c *Context) ShuttingDown() bool {
	return c.shuttingDown.Load()
}

// MarkShuttingDown flips the shutdown flag and reports whether this call was
// the first to do so (a second signal forces immediate exit).
func (c *Context) MarkShuttingDown() (first bool) {
	return c.shuttingDown.CompareAndSwap(false, true)
}
