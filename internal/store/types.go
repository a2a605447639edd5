package store

// Message delivery status values.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusErrored = "errored"
)

// User is a locally authenticated identity. All conversations and
// contacts are scoped to their owning user.
type User struct {
	ID          string
	SessionID   string
	DisplayName string
	Active      bool
}

// Recipient is a remote party's profile projection, keyed by its stable
// network address (session id). A recipient row is shared by every
// conversation and message that references the address; it is never
// duplicated.
type Recipient struct {
	ID          string
	SessionID   string
	DisplayName string
	Avatar      []byte
	ProfileKey  string
}

// Contact is a user-curated entry linking a recipient to a chosen name.
type Contact struct {
	ID          string
	UserID      string
	RecipientID string
	Name        string
}

// Conversation is a chat thread between one user and one recipient.
// At most one conversation exists per (user, recipient) pair.
type Conversation struct {
	ID                   string
	UserID               string
	RecipientID          string
	ContactID            string // empty = no linked contact
	Archived             bool
	Pinned               bool
	Blocked              bool
	NotificationsEnabled bool
	UnreadCount          int
	LastMessageID        string
	UpdatedAt            int64
}

// Message is an immutable-content record once created, except for its
// mutable state fields (read, status, reply link, tombstone).
//
// Timestamp is the sender-asserted logical time; together with the
// sender address it forms the correlation key used for reply resolution
// and delete/read lookups. CreatedAt is the local receipt time. The row
// id is locally generated and never transmitted.
type Message struct {
	ID              string
	ConversationID  string
	MessageHash     string
	CreatedAt       int64
	Timestamp       int64
	FromRecipientID string // empty = sent by the local user
	Body            string
	Read            bool
	Status          string
	StatusReason    string
	ReplyToID       string
	DeletedByUser   bool
}

// AttachmentPreview is attachment metadata only; the bytes are fetched
// lazily by the (out-of-scope) attachment layer.
type AttachmentPreview struct {
	ID            string
	MessageID     string
	Name          string
	Size          int64
	MimeType      string
	Digest        string
	AttachmentKey string
	FileserverID  string
}

// OutboxEntry is a pending outgoing message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
