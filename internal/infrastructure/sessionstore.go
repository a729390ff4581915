package infrastructure

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SessionTTL is how long a session identity stays valid without being
// re-issued. Matches the 30-day token lifetime.
const SessionTTL = 30 * 24 * time.Hour

// SQLiteSessionStore keeps session identities in a local SQLite file so chat
// sessions survive process restarts without touching postgres.
type SQLiteSessionStore struct {
	db *sql.DB
}

func NewSQLiteSessionStore(path string) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_email TEXT NOT NULL DEFAULT '',
			expires_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) Get(id string) (time.Time, bool, error) {
	var unix int64
	err := s.db.QueryRow("SELECT expires_at FROM sessions WHERE id = ?", id).Scan(&unix)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	expires := time.Unix(unix, 0)
	if time.Now().After(expires) {
		return time.Time{}, false, nil
	}
	return expires, true, nil
}

func (s *SQLiteSessionStore) Put(id, userEmail string, expiresAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user_email, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_email = excluded.user_email, expires_at = excluded.expires_at
	`, id, userEmail, expiresAt.Unix())
	return err
}

// Sweep deletes expired rows and reports how many were removed.
func (s *SQLiteSessionStore) Sweep() (int, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
