package store

import (
	"database/sql"
	"time"
)

const conversationColumns = `
	c.id, c.user_id, c.recipient_id, c.contact_id, c.archived, c.pinned,
	c.blocked, c.notifications_enabled, c.unread_count, c.last_message_id,
	c.updated_at`

// ConversationByAddress returns the user's conversation with the given
// recipient address, or nil if none exists yet.
func (s Queries) ConversationByAddress(userID, sessionID string) (*Conversation, error) {
	return s.scanConversation(s.q.QueryRow(`
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN recipients r ON r.id = c.recipient_id
		WHERE c.user_id = ? AND r.session_id = ?`, userID, sessionID))
}

// ConversationByID returns a conversation by row id.
func (s Queries) ConversationByID(id string) (*Conversation, error) {
	return s.scanConversation(s.q.QueryRow(`
		SELECT `+conversationColumns+`
		FROM conversations c WHERE c.id = ?`, id))
}

func (s Queries) scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var contactID, lastMessageID sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &c.RecipientID, &contactID, &c.Archived,
		&c.Pinned, &c.Blocked, &c.NotificationsEnabled, &c.UnreadCount,
		&lastMessageID, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ContactID = contactID.String
	c.LastMessageID = lastMessageID.String
	return &c, nil
}

// InsertConversation creates a conversation row. The unique index on
// (user_id, recipient_id) enforces one thread per pair.
func (s Queries) InsertConversation(c *Conversation) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := s.q.Exec(`
		INSERT INTO conversations
			(id, user_id, recipient_id, contact_id, archived, pinned, blocked,
			 notifications_enabled, unread_count, last_message_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.RecipientID, nullable(c.ContactID), c.Archived,
		c.Pinned, c.Blocked, c.NotificationsEnabled, c.UnreadCount,
		nullable(c.LastMessageID), c.UpdatedAt)
	return err
}

// ListConversations returns the user's conversations, pinned first, then
// most recently updated.
func (s Queries) ListConversations(userID string, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(`
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.user_id = ?
		ORDER BY c.pinned DESC, c.updated_at DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var contactID, lastMessageID sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.RecipientID, &contactID,
			&c.Archived, &c.Pinned, &c.Blocked, &c.NotificationsEnabled,
			&c.UnreadCount, &lastMessageID, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.ContactID = contactID.String
		c.LastMessageID = lastMessageID.String
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// SetLastMessage updates the conversation back-reference and advances
// updated_at; called in the same transaction as the message insert.
func (s Queries) SetLastMessage(conversationID, messageID string, now int64) error {
	_, err := s.q.Exec(`
		UPDATE conversations SET last_message_id = ?, updated_at = ? WHERE id = ?`,
		messageID, now, conversationID)
	return err
}

// IncrementUnread bumps the stored unread counter by one.
func (s Queries) IncrementUnread(conversationID string) error {
	_, err := s.q.Exec(`
		UPDATE conversations SET unread_count = unread_count + 1 WHERE id = ?`,
		conversationID)
	return err
}

// DecrementUnread lowers the stored unread counter, clamping at zero.
func (s Queries) DecrementUnread(conversationID string) error {
	_, err := s.q.Exec(`
		UPDATE conversations SET unread_count = MAX(unread_count - 1, 0) WHERE id = ?`,
		conversationID)
	return err
}

// ResetUnread zeroes the stored unread counter.
func (s Queries) ResetUnread(conversationID string) error {
	_, err := s.q.Exec(`UPDATE conversations SET unread_count = 0 WHERE id = ?`, conversationID)
	return err
}

// Single-row toggles used by the presentation layer. They follow the
// same read-modify-commit discipline as the engine but touch one column.

func (s Queries) SetConversationArchived(id string, archived bool) error {
	return s.setConversationFlag(id, "archived", archived)
}

func (s Queries) SetConversationPinned(id string, pinned bool) error {
	return s.setConversationFlag(id, "pinned", pinned)
}

func (s Queries) SetConversationBlocked(id string, blocked bool) error {
	return s.setConversationFlag(id, "blocked", blocked)
}

func (s Queries) SetConversationMuted(id string, muted bool) error {
	return s.setConversationFlag(id, "notifications_enabled", !muted)
}

func (s Queries) setConversationFlag(id, column string, value bool) error {
	_, err := s.q.Exec(`UPDATE conversations SET `+column+` = ? WHERE id = ?`, value, id)
	return err
}
