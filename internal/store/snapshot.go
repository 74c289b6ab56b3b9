package store

import (
	"bytes"
	"fmt"
	"os"

	"gorm.io/gorm"
)

// Every SQLite database file starts with this 16-byte header string.
var sqliteMagic = []byte("SQLite format 3\x00")

// Import atomically replaces the current database with the supplied
// snapshot. The snapshot is validated by opening it before the active
// handle is touched, and the previous file is kept as a backup until the
// new one is serving, so a failed import always leaves the store fully on
// the old data.
func (s *SQLiteStore) Import(data []byte) error {
	if len(data) < len(sqliteMagic) || !bytes.HasPrefix(data, sqliteMagic) {
		return fmt.Errorf("%w: not a SQLite database", ErrInvalidSnapshot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	incoming := s.path + ".incoming"
	if err := os.WriteFile(incoming, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	defer os.Remove(incoming)

	// Probe the snapshot before swapping anything. This also applies the
	// idempotent schema, so older snapshots come up migrated.
	probe, err := openDB(incoming)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := integrityCheck(probe); err != nil {
		closeDB(probe)
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	closeDB(probe)

	if err := closeDB(s.db); err != nil {
		return fmt.Errorf("close current store: %w", err)
	}
	s.db = nil

	backup := s.path + ".bak"
	if err := os.Rename(s.path, backup); err != nil {
		return s.reopen(fmt.Errorf("stash current database: %w", err))
	}
	if err := os.Rename(incoming, s.path); err != nil {
		os.Rename(backup, s.path)
		return s.reopen(fmt.Errorf("install snapshot: %w", err))
	}
	db, err := openDB(s.path)
	if err != nil {
		os.Remove(s.path)
		os.Rename(backup, s.path)
		return s.reopen(fmt.Errorf("open imported database: %w", err))
	}
	os.Remove(backup)
	s.db = db
	return nil
}

// reopen restores the active handle after a failed swap and returns cause,
// wrapping it when even the old database cannot be brought back.
func (s *SQLiteStore) reopen(cause error) error {
	db, err := openDB(s.path)
	if err != nil {
		return fmt.Errorf("%v (store unrecoverable: %w)", cause, err)
	}
	s.db = db
	return cause
}

func integrityCheck(db *gorm.DB) error {
	var result string
	if err := db.Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
