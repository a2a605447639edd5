package store

import (
	"database/sql"
	"time"
)

// RecipientByAddress returns the recipient keyed by the given session id,
// or nil if no profile projection exists yet.
func (s Queries) RecipientByAddress(sessionID string) (*Recipient, error) {
	return s.scanRecipient(s.q.QueryRow(`
		SELECT id, session_id, display_name, avatar, profile_key
		FROM recipients WHERE session_id = ?`, sessionID))
}

// RecipientByID returns a recipient by row id.
func (s Queries) RecipientByID(id string) (*Recipient, error) {
	return s.scanRecipient(s.q.QueryRow(`
		SELECT id, session_id, display_name, avatar, profile_key
		FROM recipients WHERE id = ?`, id))
}

func (s Queries) scanRecipient(row *sql.Row) (*Recipient, error) {
	var r Recipient
	err := row.Scan(&r.ID, &r.SessionID, &r.DisplayName, &r.Avatar, &r.ProfileKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRecipient creates a recipient row. The unique index on
// session_id enforces one row per address.
func (s Queries) InsertRecipient(r *Recipient) error {
	_, err := s.q.Exec(`
		INSERT INTO recipients (id, session_id, display_name, avatar, profile_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.DisplayName, r.Avatar, r.ProfileKey, time.Now().UnixMilli())
	return err
}

// UpdateRecipientDisplayName applies inbound profile data
// (last-writer-wins, an empty name clears the stored one).
func (s Queries) UpdateRecipientDisplayName(id, displayName string) error {
	_, err := s.q.Exec(`
		UPDATE recipients SET display_name = ?, updated_at = ? WHERE id = ?`,
		displayName, time.Now().UnixMilli(), id)
	return err
}

// UpdateRecipientAvatar stores a freshly downloaded avatar together with
// the profile key it was requested under.
func (s Queries) UpdateRecipientAvatar(sessionID string, avatar []byte, profileKey string) error {
	_, err := s.q.Exec(`
		UPDATE recipients SET avatar = ?, profile_key = ?, updated_at = ? WHERE session_id = ?`,
		avatar, profileKey, time.Now().UnixMilli(), sessionID)
	return err
}
