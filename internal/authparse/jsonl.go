package authparse

import (
	"encoding/json"
	"time"

	"github.com/vigilproject/vigil/internal/model"
	"github.com/vigilproject/vigil/internal/timestamp"
)

// wireEvent is the JSONL record shape written by the monitor path.
type wireEvent struct {
	TS    string `json:"ts"`
	Host  string `json:"host"`
	Event string `json:"event"`
	IP    string `json:"ip"`
	User  string `json:"user"`
	Cmd   string `json:"cmd"`
	Raw   string `json:"raw"`
}

// JSONLParser decodes structured event records, one JSON object per line.
// Malformed records are skipped (ok=false), never fatal. A record with an
// unparsable timestamp falls back to the processing clock.
type JSONLParser struct {
	now func() time.Time
}

// NewJSONLParser creates a parser for newline-delimited event records.
func NewJSONLParser() *JSONLParser {
	return &JSONLParser{now: time.Now}
}

// Parse implements model.LineParser.
func (p *JSONLParser) Parse(line string) (*model.Event, bool) {
	var w wireEvent
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return nil, false
	}
	if w.Event == "" {
		return nil, false
	}

	ts, ok := timestamp.Parse(w.TS)
	if !ok {
		ts = p.now()
	}

	return &model.Event{
		TS:   ts,
		Host: w.Host,
		Kind: model.EventKind(w.Event),
		IP:   w.IP,
		User: w.User,
		Cmd:  w.Cmd,
		Raw:  w.Raw,
	}, true
}
