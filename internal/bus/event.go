package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace
// prefix, so "backend." matches every inbound wire event.
const (
	// KindBackendEvent prefixes inbound wire events ("backend.event.<name>").
	KindBackendEvent = "backend.event."
	// KindBackendRequest carries an outbound request envelope for the
	// wire layer to service.
	KindBackendRequest = "backend.request"
	// KindMessageReceived is the observation bridge: a freshly committed
	// message for the currently open conversation view.
	KindMessageReceived = "message.received"
	// KindNotifyPush asks the (out-of-scope) desktop layer to show a
	// push notification.
	KindNotifyPush = "notify.push"
	// KindConversationTyping reports an ephemeral typing-flag change.
	KindConversationTyping = "conversation.typing"
	// KindConnectionChanged reports backend connection status.
	KindConnectionChanged = "connection.changed"
	// KindOutboxSendAck and KindOutboxSendFailed report outbound sends.
	KindOutboxSendAck    = "outbox.send_ack"
	KindOutboxSendFailed = "outbox.send_failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
