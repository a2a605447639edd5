package store

import (
	"database/sql"
	"time"
)

// ActiveUser returns the currently active local identity, or nil if no
// user is signed in.
func (s Queries) ActiveUser() (*User, error) {
	var u User
	var active int
	err := s.q.QueryRow(`
		SELECT id, session_id, display_name, active
		FROM users WHERE active = 1`).
		Scan(&u.ID, &u.SessionID, &u.DisplayName, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	return &u, nil
}

// UserBySessionID returns the user with the given network address.
func (s Queries) UserBySessionID(sessionID string) (*User, error) {
	var u User
	var active int
	err := s.q.QueryRow(`
		SELECT id, session_id, display_name, active
		FROM users WHERE session_id = ?`, sessionID).
		Scan(&u.ID, &u.SessionID, &u.DisplayName, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	return &u, nil
}

// InsertUser creates a local identity row.
func (s Queries) InsertUser(u *User) error {
	_, err := s.q.Exec(`
		INSERT INTO users (id, session_id, display_name, active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.SessionID, u.DisplayName, u.Active, time.Now().UnixMilli())
	return err
}

// SetActiveUser marks the given user active and deactivates all others.
func (s Queries) SetActiveUser(userID string) error {
	if _, err := s.q.Exec(`UPDATE users SET active = 0 WHERE id != ?`, userID); err != nil {
		return err
	}
	_, err := s.q.Exec(`UPDATE users SET active = 1 WHERE id = ?`, userID)
	return err
}
