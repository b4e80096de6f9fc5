package model

// LineParser maps one raw text line to an optional structured Event.
// Implementations are pure and stateless; ok is false when the line does
// not contain a recognizable event.
type LineParser interface {
	Parse(line string) (*Event, bool)
}

// AlertSink receives alerts as they are raised.
type AlertSink interface {
	Emit(alert *Alert) error
}

// StatusSink receives one record per source per collection cycle.
type StatusSink interface {
	Append(record *StatusRecord) error
}
