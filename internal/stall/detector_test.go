package stall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetector_FiresStalledAfterThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	h := Spawn(ctx, "s1", 30*time.Millisecond, time.Hour, 3, events, zap.NewNop())
	defer h.Close()

	select {
	case e := <-events:
		assert.Equal(t, EventStalled, e.Kind)
		assert.Equal(t, "s1", e.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected a Stalled event")
	}
	assert.True(t, h.IsStalled())
}

func TestDetector_ResetBeforeThresholdStaysIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	h := Spawn(ctx, "s1", 100*time.Millisecond, time.Hour, 3, events, zap.NewNop())
	defer h.Close()

	time.Sleep(20 * time.Millisecond)
	h.Reset()

	select {
	case e := <-events:
		t.Fatalf("expected no event yet, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, h.IsStalled())
}

func TestDetector_ResetAfterStallEmitsSelfRecovered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	h := Spawn(ctx, "s1", 20*time.Millisecond, time.Hour, 3, events, zap.NewNop())
	defer h.Close()

	require.Eventually(t, func() bool {
		select {
		case e := <-events:
			return e.Kind == EventStalled
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	h.Reset()

	require.Eventually(t, func() bool {
		select {
		case e := <-events:
			return e.Kind == EventSelfRecovered
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.IsStalled())
}

func TestDetector_EscalatesPastMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 16)
	h := Spawn(ctx, "s1", 10*time.Millisecond, 10*time.Millisecond, 2, events, zap.NewNop())
	defer h.Close()

	var kinds []EventKind
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				kinds = append(kinds, e.Kind)
				if e.Kind == EventEscalated {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	require.Contains(t, kinds, EventStalled)
	require.Contains(t, kinds, EventAutoNudge)
	require.Contains(t, kinds, EventEscalated)
}

func TestDetector_PauseSuppressesThresholdFiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	h := Spawn(ctx, "s1", 30*time.Millisecond, time.Hour, 3, events, zap.NewNop())
	defer h.Close()
	h.Pause()

	select {
	case e := <-events:
		t.Fatalf("expected no event while paused, got %+v", e)
	case <-time.After(80 * time.Millisecond):
	}

	h.Resume()
	select {
	case e := <-events:
		assert.Equal(t, EventStalled, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a Stalled event after resume")
	}
}

func TestDetector_CloseStopsTheTask(t *testing.T) {
	events := make(chan Event, 8)
	h := Spawn(context.Background(), "s1", time.Hour, time.Hour, 3, events, zap.NewNop())
	h.Close()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected detector task to exit after Close")
	}
}
