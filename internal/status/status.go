// Package status records one outcome per source per collection cycle in an
// append-only JSONL file.
package status

import (
	"github.com/vigilproject/vigil/internal/jsonl"
	"github.com/vigilproject/vigil/internal/model"
)

// Writer appends StatusRecords to a JSONL file. It implements
// model.StatusSink.
type Writer struct {
	app *jsonl.Appender
}

// Open creates or opens the status file at path.
func Open(path string) (*Writer, error) {
	app, err := jsonl.Open(path)
	if err != nil {
		return nil, err
	}
	return &Writer{app: app}, nil
}

// Append writes one status record.
func (w *Writer) Append(record *model.StatusRecord) error {
	return w.app.Append(record)
}

// Close closes the underlying file.
func (w *Writer) Close() error { return w.app.Close() }
