// Package offsets persists the per-source resumption point of the remote
// collector: a single JSON document mapping source name to the count of
// bytes already ingested.
package offsets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Store holds the offset map and rewrites it durably after every
// successful fetch. It is owned by the collector's single control flow and
// needs no locking.
type Store struct {
	path string
	m    map[string]uint64
}

// Open loads the offset map from path. A missing file yields an empty map;
// an unreadable or corrupt file is treated the same way so a damaged
// offsets file degrades to a full re-pull rather than blocking startup.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("offsets: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("offsets: mkdir: %w", err)
	}

	s := &Store{path: path, m: make(map[string]uint64)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("offsets: read: %w", err)
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		log.Printf("offsets: %s is corrupt, starting from empty offsets: %v", path, err)
		s.m = make(map[string]uint64)
	}
	return s, nil
}

// Get returns the stored offset for name, or 0 when unknown.
func (s *Store) Get(name string) uint64 { return s.m[name] }

// Set records a new offset for name. Call Save to persist it.
func (s *Store) Set(name string, offset uint64) { s.m[name] = offset }

// All returns a copy of the offset map.
func (s *Store) All() map[string]uint64 {
	out := make(map[string]uint64, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Save rewrites the offset file atomically: write to a temporary file,
// fsync, then rename over the old one. A crash mid-persist can never leave
// a partially written offsets file.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return fmt.Errorf("offsets: marshal: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("offsets: open tmp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("offsets: write tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("offsets: sync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("offsets: close tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("offsets: rename: %w", err)
	}
	return nil
}

// Load reads the offset map at path without holding it open. Read surfaces
// (the HTTP API) use this instead of sharing the collector-owned Store.
func Load(path string) (map[string]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]uint64{}, nil
		}
		return nil, fmt.Errorf("offsets: read: %w", err)
	}
	m := make(map[string]uint64)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("offsets: parse: %w", err)
	}
	return m, nil
}
