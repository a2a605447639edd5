// Package backend defines the contract to the wire transport. The
// transport itself lives outside this process boundary; the engine only
// sees named events with string-keyed map payloads and request/response
// calls with a single-shot callback.
package backend

// Inbound event names delivered by the transport.
const (
	EventNewMessage       = "new_message"
	EventMessageDeleted   = "message_deleted"
	EventMessageRead      = "message_read"
	EventTypingIndicator  = "typing_indicator"
	EventConnectionReport = "connection_report"
)

// Handler processes one named event payload. Handlers may be invoked
// from the transport's own I/O context and must hand off before touching
// shared state.
type Handler func(payload map[string]any)

// Subscription identifies one registered handler. It is returned by On
// and held by the owning component; passing it back to Off removes the
// handler. A zero Subscription is invalid.
type Subscription struct {
	event string
	id    int
}

// Event returns the event name this subscription is registered for.
func (s Subscription) Event() string { return s.event }

// Client is the transport seen by the rest of the daemon.
type Client interface {
	// On registers a handler for a named event and returns its token.
	On(event string, h Handler) Subscription
	// Off removes a previously registered handler. Unknown tokens are a
	// no-op.
	Off(sub Subscription)
	// Request issues an asynchronous request. reply, if non-nil, is
	// invoked exactly once with the response payload; it may be invoked
	// from any goroutine. Request never blocks on the response.
	Request(payload map[string]any, reply func(resp map[string]any))
}
