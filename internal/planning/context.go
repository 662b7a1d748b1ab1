package planning

import (
	"sync/atomic"
	"time"
)

// EventType identifies a stream event emitted during planning.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventPartialPlan EventType = "partial_plan"
	EventDone        EventType = "done"
	EventCancelled   EventType = "cancelled"
	EventError       EventType = "error"
)

// Event is a single planning stream event. Plan carries a partial or final
// plan payload; partial and final plans share one schema and encoding.
type Event struct {
	Type    EventType   `json:"type"`
	Phase   string      `json:"phase,omitempty"`
	Message string      `json:"message,omitempty"`
	Percent *float64    `json:"percent,omitempty"`
	Plan    interface{} `json:"plan,omitempty"`
	Status  int         `json:"status_code,omitempty"`
	Detail  string      `json:"detail,omitempty"`
	TS      float64     `json:"ts"`
}

// EventSink receives planning events. Implementations must be safe to call
// from the planning goroutine; the orchestrator never blocks on a sink.
type EventSink func(Event)

// Context carries the per-request planning lifecycle: an optional event
// sink, a cooperative cancellation flag, and a wall-clock deadline. It is
// owned by exactly one in-flight planning operation and never shared
// across requests.
type Context struct {
	sink      EventSink
	cancelled atomic.Bool
	deadline  time.Time
}

// NewContext creates a planning context with the given deadline. A zero
// deadline disables deadline checking.
func NewContext(deadline time.Time) *Context {
	return &Context{deadline: deadline}
}

// WithSink attaches an event sink and returns the context for chaining.
func (c *Context) WithSink(sink EventSink) *Context {
	c.sink = sink
	return c
}

// Cancel sets the cancellation flag. Safe to call from any goroutine and
// more than once.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Deadline returns the wall-clock deadline (zero if none).
func (c *Context) Deadline() time.Time {
	return c.deadline
}

// Remaining returns the time left until the deadline, or zero if it has
// passed. Returns a large duration when no deadline is set.
func (c *Context) Remaining() time.Duration {
	if c.deadline.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	rem := time.Until(c.deadline)
	if rem < 0 {
		return 0
	}
	return rem
}

func (c *Context) emit(ev Event) {
	if c.sink == nil {
		return
	}
	ev.TS = float64(time.Now().UnixNano()) / 1e9
	c.sink(ev)
}

// EmitProgress reports phase progress. percent is in [0, 1] and increases
// monotonically across phases. No-op when no sink is attached.
func (c *Context) EmitProgress(phase, message string, percent float64) {
	p := percent
	c.emit(Event{Type: EventProgress, Phase: phase, Message: message, Percent: &p})
}

// EmitPartialPlan publishes a plan snapshot so streaming clients can render
// the route incrementally. No-op when no sink is attached.
func (c *Context) EmitPartialPlan(phase string, plan interface{}) {
	c.emit(Event{Type: EventPartialPlan, Phase: phase, Plan: plan})
}

// CheckCancelled returns ErrCancelled if the cancellation flag is set.
func (c *Context) CheckCancelled() error {
	if c.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// CheckDeadline returns ErrDeadlineExceeded if the wall-clock deadline has
// passed.
func (c *Context) CheckDeadline() error {
	if !c.deadline.IsZero() && time.Now().After(c.deadline) {
		return ErrDeadlineExceeded
	}
	return nil
}

// Check polls both the cancellation flag and the deadline. The orchestrator
// calls this between phases; cancellation is cooperative, never preemptive.
func (c *Context) Check() error {
	if err := c.CheckCancelled(); err != nil {
		return err
	}
	return c.CheckDeadline()
}
