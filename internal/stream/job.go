// Package stream runs a planning operation in the background and exposes
// its progress events over a bounded channel, for SSE and websocket
// consumers.
package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/pkg/logger"
)

// defaultBuffer is the event channel capacity. Progress events beyond what
// the consumer has drained are dropped; terminal events are never dropped.
const defaultBuffer = 64

// RunFunc executes the planning operation under the given planning context
// and returns the final plan.
type RunFunc func(pctx *planning.Context) (interface{}, error)

// Job is one background planning run.
type Job struct {
	ID string

	pctx       *planning.Context
	events     chan planning.Event
	done       chan struct{}
	cancelOnce sync.Once
	log        *logger.Logger
}

// NewJob creates a job with the given wall-clock deadline.
func NewJob(deadline time.Time, log *logger.Logger) *Job {
	j := &Job{
		ID:     uuid.NewString(),
		events: make(chan planning.Event, defaultBuffer),
		done:   make(chan struct{}),
		log:    log.Named("stream-job"),
	}
	j.pctx = planning.NewContext(deadline).WithSink(j.push)
	return j
}

// Events is the channel the consumer drains. It is closed after the
// terminal event.
func (j *Job) Events() <-chan planning.Event {
	return j.events
}

// Cancel flags the planning context cancelled and releases the worker if it
// is blocked delivering an event. Safe to call multiple times.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() {
		j.pctx.Cancel()
		close(j.done)
	})
}

// push delivers a non-terminal event without ever blocking the planner:
// when the consumer lags behind the buffer, progress events are dropped.
func (j *Job) push(ev planning.Event) {
	select {
	case j.events <- ev:
	default:
		j.log.Debug("dropping stream event, consumer lagging",
			logger.String("job_id", j.ID),
			logger.String("type", string(ev.Type)))
	}
}

// pushTerminal blocks until the consumer takes the event or the job is
// cancelled; the terminal event must not be lost to a full buffer.
func (j *Job) pushTerminal(ev planning.Event) {
	ev.TS = float64(time.Now().UnixNano()) / 1e9
	select {
	case j.events <- ev:
	case <-j.done:
	}
}

// Start launches the planning run. The first event on the channel is
// "queued"; the last is exactly one terminal event (done, cancelled, or
// error), after which the channel is closed.
func (j *Job) Start(run RunFunc) {
	j.push(planning.Event{
		Type:    planning.EventProgress,
		Phase:   "queued",
		Message: "Request accepted",
		TS:      float64(time.Now().UnixNano()) / 1e9,
	})

	go func() {
		defer close(j.events)

		plan, err := run(j.pctx)
		switch {
		case err == nil:
			j.pushTerminal(planning.Event{
				Type:   planning.EventDone,
				Status: 200,
				Plan:   plan,
			})
		case errors.Is(err, planning.ErrCancelled):
			j.pushTerminal(planning.Event{
				Type:   planning.EventCancelled,
				Status: planning.StatusCode(err),
				Detail: planning.Detail(err),
			})
		default:
			j.pushTerminal(planning.Event{
				Type:   planning.EventError,
				Status: planning.StatusCode(err),
				Detail: planning.Detail(err),
			})
		}
	}()
}
