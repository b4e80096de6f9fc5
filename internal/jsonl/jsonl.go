// Package jsonl provides a durable append-only writer for newline-delimited
// JSON records. It backs the status, event, and alert sinks.
package jsonl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Appender writes one JSON record per line and syncs after every append so
// a crash never loses an acknowledged record.
type Appender struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates or opens an append-only JSONL file at path, creating parent
// directories as needed.
func Open(path string) (*Appender, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("jsonl: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("jsonl: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open: %w", err)
	}
	return &Appender{path: path, file: f}, nil
}

// Append marshals v and appends it as one line.
func (a *Appender) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsonl: marshal: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return errors.New("jsonl: appender is closed")
	}
	if _, err := a.file.Write(line); err != nil {
		return fmt.Errorf("jsonl: write: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync: %w", err)
	}
	return nil
}

// Path returns the file path this appender writes to.
func (a *Appender) Path() string { return a.path }

// Close closes the underlying file.
func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
