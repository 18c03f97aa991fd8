package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minutelabs/minute-core/internal/protocol"
	"github.com/minutelabs/minute-core/internal/store"
)

// State is the transient, process-local recording state of the open
// session. Starting and Stopping are guard states preventing re-entrant
// record calls.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

var (
	// ErrConsentRequired is returned when recording is requested before
	// consent has been granted for the open session.
	ErrConsentRequired = errors.New("recording: consent required")
	// ErrBusy is returned when a record call arrives while a start or
	// stop is still in flight.
	ErrBusy = errors.New("recording: state transition in progress")
	// ErrNoSession is returned when no session has been opened.
	ErrNoSession = errors.New("recording: no open session")
)

// EngineLink is the slice of the engine control channel the controller
// needs.
type EngineLink interface {
	Start(ctx context.Context, sessionID, inputDeviceID string) error
	Stop(ctx context.Context, sessionID string) error
}

// SegmentWriter persists delivered transcript segments.
type SegmentWriter interface {
	AppendSegment(ctx context.Context, seg store.Segment) error
}

// Snapshot is the observable recording state handed to subscribers.
type Snapshot struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	Consent   bool   `json:"consent"`
	Err       string `json:"error,omitempty"`
}

// Controller owns the recording state machine for the currently open
// session. Consent is captured once per opened session and never
// persisted.
type Controller struct {
	link EngineLink
	segs SegmentWriter
	log  *slog.Logger

	mu        sync.Mutex
	sessionID string
	state     State
	consent   bool
	lastErr   string

	nextSub   int
	listeners map[int]func(Snapshot)
}

func NewController(link EngineLink, segs SegmentWriter, log *slog.Logger) *Controller {
	return &Controller{
		link:      link,
		segs:      segs,
		log:       log.With(slog.String("component", "recording")),
		state:     StateIdle,
		listeners: make(map[int]func(Snapshot)),
	}
}

// OpenSession makes sessionID the current session and resets the consent
// flag. Rejected while a recording transition or recording is active.
func (c *Controller) OpenSession(sessionID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("cannot switch session while %s", c.state)
	}
	c.sessionID = sessionID
	c.consent = false
	c.lastErr = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// GrantConsent records the consent acknowledgement for the open session.
func (c *Controller) GrantConsent() error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.consent = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Record toggles recording for the open session. From Idle it requires
// consent and starts the engine; from Recording it stops. Stop is
// best-effort: a failed stop is logged and the state still returns to
// Idle so the user is never stuck.
func (c *Controller) Record(ctx context.Context, inputDeviceID string) (Snapshot, error) {
	c.mu.Lock()
	if c.sessionID == "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNoSession
	}
	sessionID := c.sessionID

	switch c.state {
	case StateStarting, StateStopping:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrBusy

	case StateRecording:
		c.state = StateStopping
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)

		if err := c.link.Stop(ctx, sessionID); err != nil {
			c.log.Warn("engine stop failed", slog.String("error", err.Error()))
		}

		c.mu.Lock()
		c.state = StateIdle
		c.lastErr = ""
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return snap, nil

	default: // Idle
		if !c.consent {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap, ErrConsentRequired
		}
		c.state = StateStarting
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)

		if err := c.link.Start(ctx, sessionID, inputDeviceID); err != nil {
			c.mu.Lock()
			c.state = StateIdle
			c.lastErr = err.Error()
			snap = c.snapshotLocked()
			c.mu.Unlock()
			c.notify(snap)
			return snap, fmt.Errorf("start recording: %w", err)
		}

		c.mu.Lock()
		c.state = StateRecording
		c.lastErr = ""
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return snap, nil
	}
}

// HandleStateChange applies an asynchronous engine state notification.
// These may arrive without a matching local request, e.g. when the engine
// crashes mid-recording.
func (c *Controller) HandleStateChange(sc protocol.StateChange) {
	c.mu.Lock()
	if sc.Recording {
		c.state = StateRecording
	} else {
		c.state = StateIdle
		c.lastErr = ""
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// HandleSegment persists a delivered segment. Delivery is append-only and
// independent of the state machine: segments arriving after a stop request
// are still accepted.
func (c *Controller) HandleSegment(seg protocol.Segment) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.segs.AppendSegment(ctx, store.Segment{
		SessionID: seg.SessionID,
		SpeakerID: seg.SpeakerID,
		Text:      seg.Text,
		StartMS:   seg.StartMS,
		EndMS:     seg.EndMS,
	})
	if err != nil {
		c.log.Warn("failed to persist segment", slog.String("error", err.Error()))
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: c.sessionID,
		State:     c.state,
		Consent:   c.consent,
		Err:       c.lastErr,
	}
}

// Subscribe registers a state observer. The returned unsubscribe func is
// safe to call more than once.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(snap Snapshot) {
	c.mu.Lock()
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
