package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the profile-owned client.db.
type DB struct {
	*sql.DB
	Queries
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, Queries: Queries{q: db}}, nil
}

// Tx is a transaction exposing the same typed queries as DB.
// All mutations belonging to one inbound event go through a single Tx
// so a concurrent reader observes either all of them or none.
type Tx struct {
	*sql.Tx
	Queries
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error.
func (db *DB) WithTx(fn func(tx *Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{Tx: tx, Queries: Queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so typed queries can
// run either standalone or inside a per-event transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Queries holds the typed lookup and mutation primitives of the entity model.
type Queries struct {
	q querier
}

// nullable maps "" to NULL for optional reference columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
