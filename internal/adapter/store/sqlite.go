// Package store persists sessions, usage counters, and settings in a local
// SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"deskmate/internal/domain"
	"deskmate/internal/security"
)

// SQLiteStore implements domain.SessionStore, domain.UsageStore and
// domain.SettingsStore on one database file. Tokens are encrypted at rest
// when a cipher is provided.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	cipher *security.TokenCipher // optional, nil stores tokens in the clear
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string, cipher *security.TokenCipher) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath, cipher: cipher}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			user_id       TEXT NOT NULL,
			user_email    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS usage (
			id    INTEGER PRIMARY KEY CHECK (id = 1),
			date  TEXT NOT NULL,
			count INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS settings (
			id   INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession implements domain.SessionStore.
func (s *SQLiteStore) SaveSession(rec domain.SessionRecord) error {
	access, err := s.seal(rec.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.seal(rec.RefreshToken)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO session (id, access_token, refresh_token, user_id, user_email, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			user_id = excluded.user_id,
			user_email = excluded.user_email,
			updated_at = excluded.updated_at`,
		access, refresh, rec.User.ID, rec.User.Email,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LoadSession implements domain.SessionStore.
func (s *SQLiteStore) LoadSession() (*domain.SessionRecord, error) {
	row := s.db.QueryRow("SELECT access_token, refresh_token, user_id, user_email FROM session WHERE id = 1")

	var rec domain.SessionRecord
	var access, refresh string
	err := row.Scan(&access, &refresh, &rec.User.ID, &rec.User.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("store.session", domain.ErrSessionNotFound, "")
	}
	if err != nil {
		return nil, err
	}

	if rec.AccessToken, err = s.open(access); err != nil {
		return nil, err
	}
	if rec.RefreshToken, err = s.open(refresh); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ClearSession implements domain.SessionStore.
func (s *SQLiteStore) ClearSession() error {
	_, err := s.db.Exec("DELETE FROM session WHERE id = 1")
	return err
}

// SaveUsage implements domain.UsageStore.
func (s *SQLiteStore) SaveUsage(rec domain.UsageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO usage (id, date, count) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, count = excluded.count`,
		rec.Date, rec.Count,
	)
	return err
}

// LoadUsage implements domain.UsageStore. An empty table reads as zero
// queries today.
func (s *SQLiteStore) LoadUsage() (domain.UsageRecord, error) {
	row := s.db.QueryRow("SELECT date, count FROM usage WHERE id = 1")

	var rec domain.UsageRecord
	err := row.Scan(&rec.Date, &rec.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UsageRecord{Date: time.Now().Format("2006-01-02")}, nil
	}
	if err != nil {
		return domain.UsageRecord{}, err
	}
	return rec, nil
}

// SaveSettings implements domain.SettingsStore.
func (s *SQLiteStore) SaveSettings(rec domain.SettingsRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		string(data),
	)
	return err
}

// LoadSettings implements domain.SettingsStore. An empty table reads as the
// first-run defaults.
func (s *SQLiteStore) LoadSettings() (domain.SettingsRecord, error) {
	row := s.db.QueryRow("SELECT data FROM settings WHERE id = 1")

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.SettingsRecord{}, err
	}

	var rec domain.SettingsRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return domain.SettingsRecord{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return rec, nil
}

// SettingsPath implements domain.SettingsStore.
func (s *SQLiteStore) SettingsPath() string {
	return s.path
}

func (s *SQLiteStore) seal(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}
	return s.cipher.Encrypt(value)
}

func (s *SQLiteStore) open(value string) (string, error) {
	if s.cipher == nil {
		return value, nil
	}
	return s.cipher.Decrypt(value)
}

var (
	_ domain.SessionStore  = (*SQLiteStore)(nil)
	_ domain.UsageStore    = (*SQLiteStore)(nil)
	_ domain.SettingsStore = (*SQLiteStore)(nil)
)
