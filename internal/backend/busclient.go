package backend

import (
	"sync"
	"time"

	"github.com/sessiond/sessiond/internal/bus"
)

// RequestEnvelope is published on the bus for each outbound request. The
// wire layer subscribes to bus.KindBackendRequest, services the payload
// and invokes Reply (which may be nil) exactly once.
type RequestEnvelope struct {
	Payload map[string]any
	Reply   func(resp map[string]any)
}

// BusClient bridges the Client contract over the in-process bus: the
// wire layer publishes inbound events as "backend.event.<name>" and
// consumes request envelopes. This keeps the daemon decoupled from
// whatever process or library actually speaks the protocol.
type BusClient struct {
	bus *bus.Bus

	mu   sync.Mutex
	subs map[int]*forwarder
	next int
}

type forwarder struct {
	token bus.Subscription
	done  chan struct{}
}

// NewBusClient creates a bus-backed transport client.
func NewBusClient(b *bus.Bus) *BusClient {
	return &BusClient{
		bus:  b,
		subs: make(map[int]*forwarder),
	}
}

// On subscribes to inbound events of the given name.
func (c *BusClient) On(event string, h Handler) Subscription {
	ch, token := c.bus.Subscribe(bus.KindBackendEvent+event, 256)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case evt := <-ch:
				if payload, ok := evt.Payload.(map[string]any); ok {
					h(payload)
				}
			case <-done:
				return
			}
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = &forwarder{token: token, done: done}
	return Subscription{event: event, id: id}
}

// Off removes a handler registered with On.
func (c *BusClient) Off(sub Subscription) {
	c.mu.Lock()
	fw, ok := c.subs[sub.id]
	if ok {
		delete(c.subs, sub.id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.bus.Unsubscribe(fw.token)
	close(fw.done)
}

// Request publishes a request envelope for the wire layer.
func (c *BusClient) Request(payload map[string]any, reply func(resp map[string]any)) {
	c.bus.Publish(bus.Event{
		Kind:      bus.KindBackendRequest,
		Timestamp: time.Now(),
		Payload:   RequestEnvelope{Payload: payload, Reply: reply},
	})
}

// Emit publishes an inbound event as the wire layer would; used by the
// wire bridge and by tests.
func (c *BusClient) Emit(event string, payload map[string]any) {
	c.bus.Publish(bus.Event{
		Kind:      bus.KindBackendEvent + event,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
