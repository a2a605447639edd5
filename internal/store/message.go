package store

import (
	"database/sql"
	"time"
)

const messageColumns = `
	m.id, m.conversation_id, m.message_hash, m.created_at, m.timestamp,
	m.from_recipient_id, m.body, m.read, m.status, m.status_reason,
	m.reply_to_id, m.deleted_by_user`

// InsertMessage creates a message row together with its attachment
// previews. The partial unique index on (conversation_id, message_hash)
// rejects duplicate inbound deliveries of the same content hash.
func (s Queries) InsertMessage(m *Message, attachments []AttachmentPreview) error {
	_, err := s.q.Exec(`
		INSERT INTO messages
			(id, conversation_id, message_hash, created_at, timestamp,
			 from_recipient_id, body, read, status, status_reason,
			 reply_to_id, deleted_by_user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.MessageHash, m.CreatedAt, m.Timestamp,
		nullable(m.FromRecipientID), m.Body, m.Read, m.Status, m.StatusReason,
		nullable(m.ReplyToID), m.DeletedByUser)
	if err != nil {
		return err
	}
	for i := range attachments {
		a := &attachments[i]
		a.MessageID = m.ID
		if _, err := s.q.Exec(`
			INSERT INTO attachment_previews
				(id, message_id, name, size, mime_type, digest, attachment_key, fileserver_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.MessageID, a.Name, a.Size, a.MimeType, a.Digest,
			a.AttachmentKey, a.FileserverID); err != nil {
			return err
		}
	}
	return nil
}

// MessageByID returns a message by row id.
func (s Queries) MessageByID(id string) (*Message, error) {
	return s.scanMessage(s.q.QueryRow(`
		SELECT `+messageColumns+` FROM messages m WHERE m.id = ?`, id))
}

// MessageByHash returns the message with the given content hash inside a
// conversation, used to deduplicate redelivered events.
func (s Queries) MessageByHash(conversationID, hash string) (*Message, error) {
	return s.scanMessage(s.q.QueryRow(`
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = ? AND m.message_hash = ?`, conversationID, hash))
}

// MessageByCorrelation locates a message by the cross-client correlation
// key: the conversation's recipient address plus the sender-asserted
// timestamp, scoped to conversations of the given user.
func (s Queries) MessageByCorrelation(userID, sessionID string, timestamp int64) (*Message, error) {
	return s.scanMessage(s.q.QueryRow(`
		SELECT `+messageColumns+`
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN recipients r ON r.id = c.recipient_id
		WHERE c.user_id = ? AND r.session_id = ? AND m.timestamp = ?`,
		userID, sessionID, timestamp))
}

// ReplyTarget resolves the best-effort reply reference: a message with
// the given sender-asserted timestamp whose author is either the local
// user (authorIsSelf) or the given remote address, scoped to the user's
// conversations. Timestamp+author is heuristic, not a stable id; callers
// must tolerate a nil result.
func (s Queries) ReplyTarget(userID, authorSessionID string, timestamp int64, authorIsSelf bool) (*Message, error) {
	if authorIsSelf {
		return s.scanMessage(s.q.QueryRow(`
			SELECT `+messageColumns+`
			FROM messages m
			JOIN conversations c ON c.id = m.conversation_id
			WHERE c.user_id = ? AND m.from_recipient_id IS NULL AND m.timestamp = ?`,
			userID, timestamp))
	}
	return s.scanMessage(s.q.QueryRow(`
		SELECT `+messageColumns+`
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN recipients r ON r.id = m.from_recipient_id
		WHERE c.user_id = ? AND r.session_id = ? AND m.timestamp = ?`,
		userID, authorSessionID, timestamp))
}

// SetReplyTo links a message to its resolved reply target.
func (s Queries) SetReplyTo(messageID, targetID string) error {
	_, err := s.q.Exec(`UPDATE messages SET reply_to_id = ? WHERE id = ?`, targetID, messageID)
	return err
}

// MarkMessageRead flips the read flag on a single message.
func (s Queries) MarkMessageRead(id string) error {
	_, err := s.q.Exec(`UPDATE messages SET read = 1 WHERE id = ?`, id)
	return err
}

// TombstoneMessage soft-deletes a message: the body and attachments are
// cleared so the content cannot be recovered, but the row keeps its
// identifier, timestamp and correlation key so ordering stays stable.
func (s Queries) TombstoneMessage(id string) error {
	if _, err := s.q.Exec(`
		UPDATE messages SET deleted_by_user = 1, body = '' WHERE id = ?`, id); err != nil {
		return err
	}
	_, err := s.q.Exec(`DELETE FROM attachment_previews WHERE message_id = ?`, id)
	return err
}

// UpdateMessageStatus applies a delivery status transition to an
// outbound message, optionally recording the server-assigned hash.
func (s Queries) UpdateMessageStatus(id, status, reason, hash string) error {
	if hash != "" {
		_, err := s.q.Exec(`
			UPDATE messages SET status = ?, status_reason = ?, message_hash = ? WHERE id = ?`,
			status, reason, hash, id)
		return err
	}
	_, err := s.q.Exec(`
		UPDATE messages SET status = ?, status_reason = ? WHERE id = ?`, status, reason, id)
	return err
}

// UnreadInboundTimestamps returns the sender-asserted timestamps of
// unread inbound messages in a conversation, oldest first. These are the
// values sent with a mark_as_read request.
func (s Queries) UnreadInboundTimestamps(conversationID string) ([]int64, error) {
	rows, err := s.q.Query(`
		SELECT timestamp FROM messages
		WHERE conversation_id = ? AND from_recipient_id IS NOT NULL AND read = 0
		ORDER BY timestamp ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// MarkConversationRead flips read on all unread inbound messages and
// zeroes the stored unread counter in one shot.
func (s Queries) MarkConversationRead(conversationID string) error {
	if _, err := s.q.Exec(`
		UPDATE messages SET read = 1
		WHERE conversation_id = ? AND from_recipient_id IS NOT NULL AND read = 0`,
		conversationID); err != nil {
		return err
	}
	return s.ResetUnread(conversationID)
}

// ListMessages returns messages for a conversation using keyset
// pagination by sender-asserted timestamp.
func (s Queries) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := s.q.Query(`
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id = ? AND m.timestamp < ?
		ORDER BY m.timestamp DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the number of messages in a conversation.
func (s Queries) MessageCount(conversationID string) (int64, error) {
	var n int64
	err := s.q.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}

func (s Queries) scanMessage(row *sql.Row) (*Message, error) {
	var m Message
	var from, replyTo sql.NullString
	err := row.Scan(&m.ID, &m.ConversationID, &m.MessageHash, &m.CreatedAt,
		&m.Timestamp, &from, &m.Body, &m.Read, &m.Status, &m.StatusReason,
		&replyTo, &m.DeletedByUser)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.FromRecipientID = from.String
	m.ReplyToID = replyTo.String
	return &m, nil
}

func scanMessageRow(rows *sql.Rows) (*Message, error) {
	var m Message
	var from, replyTo sql.NullString
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.MessageHash, &m.CreatedAt,
		&m.Timestamp, &from, &m.Body, &m.Read, &m.Status, &m.StatusReason,
		&replyTo, &m.DeletedByUser); err != nil {
		return nil, err
	}
	m.FromRecipientID = from.String
	m.ReplyToID = replyTo.String
	return &m, nil
}
