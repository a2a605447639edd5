package store

import "time"

// QueueOutbox adds a message to the send outbox.
func (s Queries) QueueOutbox(clientMsgID, conversationID, body string) error {
	now := time.Now().UnixMilli()
	_, err := s.q.Exec(`
		INSERT INTO outbox (client_msg_id, conversation_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, conversationID, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (s Queries) MarkOutboxSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := s.q.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (s Queries) MarkOutboxSent(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := s.q.Exec(`UPDATE outbox SET status = 'sent', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (s Queries) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.q.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// PendingOutbox returns outbox entries that are still queued.
func (s Queries) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := s.q.Query(`
		SELECT id, client_msg_id, conversation_id, body, status, error_message
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ConversationID, &e.Body, &e.Status, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
