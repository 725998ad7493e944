// Package stall implements the per-session Stall Detector (spec 4.5)
// and the Stall Event Consumer that reacts to its events (spec 4.6).
//
// Grounded on: original_source/src/orchestrator/stall_detector.rs (the
// Idle/Stalled/Nudged/Escalated state machine, the paused-flag poll
// idiom, and the reset/pause/resume control surface) and
// stall_consumer.rs (event dispatch to chat plus ACP nudge delivery).
package stall

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// pausePollInterval is how often a paused detector checks whether it
// has been resumed, mirroring the original's 50 ms spin-wait.
const pausePollInterval = 50 * time.Millisecond

// EventKind identifies which stall-lifecycle transition an Event
// reports.
type EventKind string

const (
	EventStalled       EventKind = "stalled"
	EventAutoNudge     EventKind = "auto_nudge"
	EventEscalated     EventKind = "escalated"
	EventSelfRecovered EventKind = "self_recovered"
)

// Event is emitted by a running Detector for the Stall Event Consumer
// to act on.
type Event struct {
	Kind        EventKind
	SessionID   string
	IdleSeconds int64
	NudgeCount  uint32
}

// Handle controls a running per-session stall detector. The zero
// value is not usable; construct with Spawn.
type Handle struct {
	sessionID string
	resetCh   chan struct{}
	paused    atomic.Bool
	stalled   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Spawn starts a background timer task for sessionID and returns a
// Handle for controlling it. events is the shared channel the Stall
// Event Consumer reads from; Spawn never closes it.
func Spawn(ctx context.Context, sessionID string, inactivityThreshold, escalationInterval time.Duration, maxRetries uint32, events chan<- Event, logger *zap.Logger) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		sessionID: sessionID,
		resetCh:   make(chan struct{}, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go h.run(runCtx, inactivityThreshold, escalationInterval, maxRetries, events, logger)
	return h
}

// Reset fires the activity-reset notifier: any waiting inactivity
// sleep completes early and the state machine returns toward Idle,
// emitting SelfRecovered if it was Stalled.
func (h *Handle) Reset() {
	select {
	case h.resetCh <- struct{}{}:
	default:
	}
}

// Pause sets the paused flag; inactivity sleeps poll the flag and do
// not start counting until it clears.
func (h *Handle) Pause() {
	h.paused.Store(true)
}

// Resume clears the paused flag and resets the timer.
func (h *Handle) Resume() {
	h.paused.Store(false)
	h.Reset()
}

// IsStalled reports whether the detector currently considers the
// session stalled.
func (h *Handle) IsStalled() bool {
	return h.stalled.Load()
}

// SessionID returns the session this handle controls.
func (h *Handle) SessionID() string {
	return h.sessionID
}

// Close cancels the background detector task. Close is idempotent and
// does not wait for the task to fully exit; callers that need that
// guarantee should receive from Done() after calling Close.
func (h *Handle) Close() {
	h.cancel()
}

// Done returns a channel that closes once the background task has
// exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) run(ctx context.Context, inactivityThreshold, escalationInterval time.Duration, maxRetries uint32, events chan<- Event, logger *zap.Logger) {
	defer close(h.done)

	var nudgeCount uint32

	for {
		fired, ok := h.waitForThresholdOrReset(ctx, inactivityThreshold)
		if !ok {
			return
		}
		if !fired {
			h.handleResetBeforeStall(&nudgeCount, events, logger)
			continue
		}

		h.stalled.Store(true)
		idleSecs := int64(inactivityThreshold.Seconds())
		logger.Info("stall detected", zap.String("session_id", h.sessionID), zap.Int64("idle_seconds", idleSecs))
		emit(events, Event{Kind: EventStalled, SessionID: h.sessionID, IdleSeconds: idleSecs})

		if !h.escalationLoop(ctx, escalationInterval, maxRetries, &nudgeCount, events, logger) {
			return
		}
	}
}

// waitForThresholdOrReset waits for either the inactivity threshold to
// elapse (fired=true) or a reset to arrive first (fired=false). ok is
// false if the context was canceled.
func (h *Handle) waitForThresholdOrReset(ctx context.Context, threshold time.Duration) (fired, ok bool) {
	for h.paused.Load() {
		select {
		case <-ctx.Done():
			return false, false
		case <-h.resetCh:
			return false, true
		case <-time.After(pausePollInterval):
		}
	}

	select {
	case <-ctx.Done():
		return false, false
	case <-h.resetCh:
		return false, true
	case <-time.After(threshold):
		return true, true
	}
}

func (h *Handle) handleResetBeforeStall(nudgeCount *uint32, events chan<- Event, logger *zap.Logger) {
	if h.stalled.Swap(false) {
		logger.Info("agent self-recovered", zap.String("session_id", h.sessionID))
		*nudgeCount = 0
		emit(events, Event{Kind: EventSelfRecovered, SessionID: h.sessionID})
	}
}

// escalationLoop runs the nudge/escalate cycle while the session
// remains stalled. It returns false when the context was canceled.
func (h *Handle) escalationLoop(ctx context.Context, escalationInterval time.Duration, maxRetries uint32, nudgeCount *uint32, events chan<- Event, logger *zap.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-h.resetCh:
			h.handleResetBeforeStall(nudgeCount, events, logger)
			return true
		case <-time.After(escalationInterval):
		}

		*nudgeCount++

		if *nudgeCount > maxRetries {
			logger.Warn("stall escalated past max retries",
				zap.String("session_id", h.sessionID), zap.Uint32("nudge_count", *nudgeCount))
			emit(events, Event{Kind: EventEscalated, SessionID: h.sessionID, NudgeCount: *nudgeCount})

			select {
			case <-ctx.Done():
				return false
			case <-h.resetCh:
				h.handleResetBeforeStall(nudgeCount, events, logger)
				return true
			}
		}

		logger.Info("auto-nudge", zap.String("session_id", h.sessionID), zap.Uint32("nudge_count", *nudgeCount))
		emit(events, Event{Kind: EventAutoNudge, SessionID: h.sessionID, NudgeCount: *nudgeCount})
	}
}

func emit(events chan<- Event, e Event) {
	select {
	case events <- e:
	default:
		// The event bus is expected to keep up; a full channel here
		// means the consumer has fallen behind, and dropping a stall
		// notification is preferable to blocking the detector timer.
	}
}
