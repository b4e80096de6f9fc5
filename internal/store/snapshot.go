package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInMemoryStore is returned when a snapshot is requested from a store
// that has no backing file.
var ErrInMemoryStore = errors.New("store: in-memory database cannot be snapshotted")

// DBPath returns the database file path, empty for in-memory stores.
func (s *Store) DBPath() string { return s.dbPath }

// SnapshotTo writes a point-in-time copy of the database file to dstPath.
// The WAL is checkpointed first so the file copy is self-contained, and the
// copy lands under a temporary name until it is fully synced.
func (s *Store) SnapshotTo(dstPath string) error {
	if s.dbPath == "" {
		return ErrInMemoryStore
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("store: checkpoint: %w", err)
	}

	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("store: snapshot dir: %w", err)
	}

	src, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("store: open database file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("store: snapshot temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return fmt.Errorf("store: copy database file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("store: chmod snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return fmt.Errorf("store: publish snapshot: %w", err)
	}
	return nil
}
