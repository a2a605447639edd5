package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sessiond/sessiond/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {Connecting, Error},
	Connecting:   {Ready, Reconnecting, Error},
	Ready:        {Reconnecting, Error},
	Reconnecting: {Connecting, Ready, Error},
	Error:        {Connecting},
}

// Tracker receives connection reports, enforces the daemon state machine
// and publishes changes on the bus. It is the connection-status
// collaborator the reconciliation engine forwards connection_report
// events to verbatim.
type Tracker struct {
	mu        sync.RWMutex
	current   State
	connected bool
	lastError string
	bus       *bus.Bus
}

// Change is the payload for connection.changed events.
type Change struct {
	From      State
	To        State
	Connected bool
	Err       string
}

// NewTracker creates a tracker starting in Booting state.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (t *Tracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Connected reports the last known connection flag.
func (t *Tracker) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// LastError returns the last reported connection error, if any.
func (t *Tracker) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}

// SetConnected applies a connected/disconnected report.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
	if connected {
		t.lastError = ""
		if t.current == Booting || t.current == Reconnecting || t.current == Error {
			_ = t.transitionLocked(Connecting)
		}
		_ = t.transitionLocked(Ready)
	} else {
		_ = t.transitionLocked(Reconnecting)
	}
}

// SetError records a connection error report.
func (t *Tracker) SetError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = msg
	t.connected = false
	_ = t.transitionLocked(Error)
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid.
func (t *Tracker) Transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

func (t *Tracker) transitionLocked(to State) error {
	allowed := validTransitions[t.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", t.current, to)
	}
	from := t.current
	t.current = to
	if t.bus != nil {
		t.bus.Publish(bus.Event{
			Kind:      bus.KindConnectionChanged,
			Timestamp: time.Now(),
			Payload: Change{
				From:      from,
				To:        to,
				Connected: t.connected,
				Err:       t.lastError,
			},
		})
	}
	return nil
}
