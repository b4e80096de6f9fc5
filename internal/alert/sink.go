package alert

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vigilproject/vigil/internal/jsonl"
	"github.com/vigilproject/vigil/internal/model"
)

// FileSink appends alerts to a JSONL file. It implements model.AlertSink.
type FileSink struct {
	app *jsonl.Appender
}

// NewFileSink creates or opens the alert file at path.
func NewFileSink(path string) (*FileSink, error) {
	app, err := jsonl.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{app: app}, nil
}

// Emit appends one alert.
func (s *FileSink) Emit(a *model.Alert) error { return s.app.Append(a) }

// Close closes the underlying file.
func (s *FileSink) Close() error { return s.app.Close() }

// EchoSink prints alerts to stdout as single-line JSON.
type EchoSink struct{}

// Emit implements model.AlertSink.
func (EchoSink) Emit(a *model.Alert) error {
	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert: marshal for echo: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(line))
	return err
}

// SinkFunc adapts a function to model.AlertSink.
type SinkFunc func(a *model.Alert) error

// Emit implements model.AlertSink.
func (f SinkFunc) Emit(a *model.Alert) error { return f(a) }

// MultiSink fans one alert out to every sink. The first error is returned
// after all sinks have been attempted.
type MultiSink []model.AlertSink

// Emit implements model.AlertSink.
func (m MultiSink) Emit(a *model.Alert) error {
	var firstErr error
	for _, s := range m {
		if err := s.Emit(a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
