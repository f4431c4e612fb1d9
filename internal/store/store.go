// Package store persists permit-sync state in a local SQLite database.
// It exposes a typed repository over a single key/value table; every
// accessor is a single-key atomic read or write, so concurrent writers
// resolve as last-writer-wins.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/visproj/permitsync/internal/permit"
)

// DefaultRemoteURL is the permit source used until an operator overrides it.
const DefaultRemoteURL = "https://raw.githubusercontent.com/VisTechProjects/parking_pass_display/permit/permit.json"

// State keys. The schema is the contract; the storage mechanism is not.
const (
	keyRemotePermit        = "remote_permit"
	keyDisplayPermit       = "display_permit"
	keyDisplayPermitNumber = "display_permit_number"
	keyPreviousPermit      = "previous_permit"
	keyLastSync            = "last_sync_time"
	keyLastDisplaySync     = "last_display_sync_time"
	keyRemoteURL           = "remote_url"
	keyDisplayFlipped      = "display_flipped"
)

// Store is the permit state repository. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates or opens the permit database under dataDir with WAL mode
// enabled, and seeds first-run state.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "permits.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: seed: %w", err)
	}

	slog.Info("permit store opened", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS permit_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	return err
}

// seed populates first-run state: the remote URL default and a historical
// previous permit, so price-delta messaging has a baseline from day one.
func (s *Store) seed() error {
	if v, err := s.get(keyRemoteURL); err != nil {
		return err
	} else if v == "" {
		if err := s.set(keyRemoteURL, DefaultRemoteURL); err != nil {
			return err
		}
	}

	if v, err := s.get(keyPreviousPermit); err != nil {
		return err
	} else if v == "" {
		seedPermit := &permit.Permit{
			PermitNumber: "0000000",
			PlateNumber:  "UNKNOWN",
			ValidFrom:    "Jan 01, 2024: 00:00",
			ValidTo:      "Jan 07, 2024: 23:59",
			BarcodeValue: "0000000",
			BarcodeLabel: "0000000",
			Price:        "$25.00",
		}
		if err := s.setPermit(keyPreviousPermit, seedPermit); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM permit_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO permit_state (key, value, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) getPermit(key string) (*permit.Permit, error) {
	v, err := s.get(key)
	if err != nil || v == "" {
		return nil, err
	}
	p, err := permit.FromJSON([]byte(v))
	if err != nil {
		// A corrupt blob reads as absent rather than poisoning callers.
		slog.Warn("discarding corrupt permit blob", "key", key, "error", err)
		return nil, nil
	}
	return p, nil
}

func (s *Store) setPermit(key string, p *permit.Permit) error {
	data, err := p.ToJSON()
	if err != nil {
		return fmt.Errorf("store: marshal %q: %w", key, err)
	}
	return s.set(key, string(data))
}

func (s *Store) getTime(key string) (time.Time, error) {
	v, err := s.get(key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func (s *Store) setTime(key string, t time.Time) error {
	return s.set(key, strconv.FormatInt(t.UnixMilli(), 10))
}

// RemotePermit returns the last permit fetched from the remote source, or
// nil if none has been fetched yet.
func (s *Store) RemotePermit() (*permit.Permit, error) {
	return s.getPermit(keyRemotePermit)
}

// SetRemotePermit records a freshly fetched permit and stamps the last
// sync time.
func (s *Store) SetRemotePermit(p *permit.Permit, now time.Time) error {
	if err := s.setPermit(keyRemotePermit, p); err != nil {
		return err
	}
	return s.setTime(keyLastSync, now)
}

// DisplayPermit returns the permit last confirmed delivered to the display.
func (s *Store) DisplayPermit() (*permit.Permit, error) {
	return s.getPermit(keyDisplayPermit)
}

// SetDisplayPermit records a confirmed display delivery: the permit blob,
// its number, and the delivery time.
func (s *Store) SetDisplayPermit(p *permit.Permit, now time.Time) error {
	if err := s.setPermit(keyDisplayPermit, p); err != nil {
		return err
	}
	if err := s.set(keyDisplayPermitNumber, p.PermitNumber); err != nil {
		return err
	}
	return s.setTime(keyLastDisplaySync, now)
}

// DisplayPermitNumber returns the number of the permit on the display, or
// "" if no delivery has ever been confirmed.
func (s *Store) DisplayPermitNumber() (string, error) {
	return s.get(keyDisplayPermitNumber)
}

// PreviousPermit returns the permit that was remote-current before the
// current one. Used only for price-delta reporting.
func (s *Store) PreviousPermit() (*permit.Permit, error) {
	return s.getPermit(keyPreviousPermit)
}

// SetPreviousPermit records the superseded remote permit.
func (s *Store) SetPreviousPermit(p *permit.Permit) error {
	return s.setPermit(keyPreviousPermit, p)
}

// LastSyncTime returns the time of the last successful remote fetch; the
// zero time means never.
func (s *Store) LastSyncTime() (time.Time, error) {
	return s.getTime(keyLastSync)
}

// LastDisplaySyncTime returns the time of the last confirmed display
// delivery; the zero time means never.
func (s *Store) LastDisplaySyncTime() (time.Time, error) {
	return s.getTime(keyLastDisplaySync)
}

// RemoteURL returns the configured permit source URL.
func (s *Store) RemoteURL() (string, error) {
	v, err := s.get(keyRemoteURL)
	if err != nil {
		return "", err
	}
	if v == "" {
		return DefaultRemoteURL, nil
	}
	return v, nil
}

// SetRemoteURL overrides the permit source URL.
func (s *Store) SetRemoteURL(url string) error {
	return s.set(keyRemoteURL, url)
}

// DisplayFlipped returns the persisted display-orientation flag.
func (s *Store) DisplayFlipped() (bool, error) {
	v, err := s.get(keyDisplayFlipped)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetDisplayFlipped persists the display-orientation flag.
func (s *Store) SetDisplayFlipped(flipped bool) error {
	return s.set(keyDisplayFlipped, strconv.FormatBool(flipped))
}

// IsDisplayOutOfSync reports whether the display has not yet received the
// latest remote permit: the remote permit is valid and the recorded
// display permit number is absent or different.
func (s *Store) IsDisplayOutOfSync() (bool, error) {
	remote, err := s.RemotePermit()
	if err != nil {
		return false, err
	}
	if !remote.IsValid() {
		return false, nil
	}
	displayNumber, err := s.DisplayPermitNumber()
	if err != nil {
		return false, err
	}
	return displayNumber == "" || displayNumber != remote.PermitNumber, nil
}
