package planning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextCancellation(t *testing.T) {
	pc := NewContext(time.Time{})
	require.NoError(t, pc.Check())

	pc.Cancel()
	assert.ErrorIs(t, pc.CheckCancelled(), ErrCancelled)
	assert.ErrorIs(t, pc.Check(), ErrCancelled)

	// Cancel is idempotent
	pc.Cancel()
	assert.ErrorIs(t, pc.Check(), ErrCancelled)
}

func TestContextDeadline(t *testing.T) {
	pc := NewContext(time.Now().Add(-time.Second))
	assert.ErrorIs(t, pc.CheckDeadline(), ErrDeadlineExceeded)
	assert.Zero(t, pc.Remaining())

	pc = NewContext(time.Now().Add(time.Hour))
	require.NoError(t, pc.Check())
	assert.Greater(t, pc.Remaining(), 55*time.Minute)

	// No deadline means effectively unlimited time
	pc = NewContext(time.Time{})
	require.NoError(t, pc.CheckDeadline())
	assert.Greater(t, pc.Remaining(), time.Hour)
}

func TestContextEvents(t *testing.T) {
	var events []Event
	pc := NewContext(time.Time{}).WithSink(func(ev Event) {
		events = append(events, ev)
	})

	pc.EmitProgress("route", "computing route", 0.2)
	pc.EmitPartialPlan("route", map[string]int{"legs": 3})

	require.Len(t, events, 2)
	assert.Equal(t, EventProgress, events[0].Type)
	assert.Equal(t, "route", events[0].Phase)
	require.NotNil(t, events[0].Percent)
	assert.InDelta(t, 0.2, *events[0].Percent, 1e-9)
	assert.Equal(t, EventPartialPlan, events[1].Type)
	assert.NotNil(t, events[1].Plan)
	assert.Greater(t, events[1].TS, 0.0)
}

func TestContextNoSink(t *testing.T) {
	pc := NewContext(time.Time{})
	// Must not panic without a sink attached
	pc.EmitProgress("route", "computing route", 0.5)
	pc.EmitPartialPlan("route", nil)
}

func TestGateSerializesAtLimitOne(t *testing.T) {
	g := NewGate(1, 0)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	_, ok := g.TryAcquire()
	assert.False(t, ok)

	release()
	release() // safe to call twice

	release2, ok := g.TryAcquire()
	require.True(t, ok)
	release2()
}

func TestGateQueueTimeout(t *testing.T) {
	g := NewGate(1, 20*time.Millisecond)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = g.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateUnlimited(t *testing.T) {
	g := NewGate(0, 0)
	for i := 0; i < 100; i++ {
		release, err := g.Acquire(context.Background())
		require.NoError(t, err)
		release()
	}
}

func TestGateContextCancelled(t *testing.T) {
	g := NewGate(1, 0)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}
