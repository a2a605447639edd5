package store

import "database/sql"

// SearchMessages performs a full-text search on message bodies.
// Tombstoned messages have an empty body and never match.
func (s Queries) SearchMessages(query, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + messageColumns + `,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.q.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var from, replyTo sql.NullString
		if err := rows.Scan(&r.Message.ID, &r.Message.ConversationID,
			&r.Message.MessageHash, &r.Message.CreatedAt, &r.Message.Timestamp,
			&from, &r.Message.Body, &r.Message.Read, &r.Message.Status,
			&r.Message.StatusReason, &replyTo, &r.Message.DeletedByUser,
			&r.Snippet); err != nil {
			return nil, err
		}
		r.Message.FromRecipientID = from.String
		r.Message.ReplyToID = replyTo.String
		results = append(results, r)
	}
	return results, rows.Err()
}
