package store

import (
	"database/sql"
	"time"
)

// ContactByAddress returns the user's contact entry for the given
// recipient address, or nil if none exists.
func (s Queries) ContactByAddress(userID, sessionID string) (*Contact, error) {
	var c Contact
	err := s.q.QueryRow(`
		SELECT ct.id, ct.user_id, ct.recipient_id, ct.name
		FROM contacts ct
		JOIN recipients r ON r.id = ct.recipient_id
		WHERE ct.user_id = ? AND r.session_id = ?`, userID, sessionID).
		Scan(&c.ID, &c.UserID, &c.RecipientID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ContactByID returns a contact by primary key, or nil if none exists.
func (s Queries) ContactByID(id string) (*Contact, error) {
	var c Contact
	err := s.q.QueryRow(`
		SELECT id, user_id, recipient_id, name FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.RecipientID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertContact creates a contact entry for a (user, recipient) pair.
func (s Queries) InsertContact(c *Contact) error {
	_, err := s.q.Exec(`
		INSERT INTO contacts (id, user_id, recipient_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.RecipientID, c.Name, time.Now().UnixMilli())
	return err
}

// RenameContact changes the user-chosen name of a contact.
func (s Queries) RenameContact(id, name string) error {
	_, err := s.q.Exec(`UPDATE contacts SET name = ? WHERE id = ?`, name, id)
	return err
}
