// Package notify carries committed state changes to whoever is looking:
// the observation bridge feeds the currently open conversation view, the
// dispatcher hands push notifications to the (out-of-scope) desktop layer.
package notify

import (
	"time"

	"github.com/sessiond/sessiond/internal/bus"
	"github.com/sessiond/sessiond/internal/store"
)

// Bridge notifies an already-open conversation view of a newly committed
// message so it can append without re-querying the store.
type Bridge struct {
	bus *bus.Bus
}

// NewBridge creates an observation bridge over the bus.
func NewBridge(b *bus.Bus) *Bridge {
	return &Bridge{bus: b}
}

// NotifyNewMessage is fire-and-forget; if no view is subscribed the
// event is simply dropped.
func (br *Bridge) NotifyNewMessage(m *store.Message) {
	br.bus.Publish(bus.Event{
		Kind:      bus.KindMessageReceived,
		Timestamp: time.Now(),
		Payload:   m,
	})
}

// Notification is the payload handed to the desktop notification layer.
type Notification struct {
	ID    string
	Title string
	Body  string
}

// Dispatcher publishes push notifications for conversations that are not
// currently observed.
type Dispatcher struct {
	bus *bus.Bus
}

// NewDispatcher creates a push-notification dispatcher over the bus.
func NewDispatcher(b *bus.Bus) *Dispatcher {
	return &Dispatcher{bus: b}
}

// Notify publishes one notification. The id is the message content hash
// so redelivered notifications coalesce downstream.
func (d *Dispatcher) Notify(id, title, body string) {
	d.bus.Publish(bus.Event{
		Kind:      bus.KindNotifyPush,
		Timestamp: time.Now(),
		Payload:   Notification{ID: id, Title: title, Body: body},
	})
}

// SessionIDPlaceholder shortens a session id for display when no contact
// name or profile name is known.
func SessionIDPlaceholder(sessionID string) string {
	if len(sessionID) <= 8 {
		return "(" + sessionID + ")"
	}
	return "(" + sessionID[:4] + "..." + sessionID[len(sessionID)-4:] + ")"
}
