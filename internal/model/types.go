package model

import "time"

// EventKind classifies a parsed authentication event.
type EventKind string

const (
	EventSSHFailed   EventKind = "ssh_failed"
	EventSSHAccepted EventKind = "ssh_accepted"
	EventSudo        EventKind = "sudo"
	EventOther       EventKind = "other"
)

// Event is one structured authentication event parsed from a raw log line.
// Events have no identity beyond their fields; duplicates are tolerated.
type Event struct {
	TS   time.Time `json:"ts"`
	Host string    `json:"host,omitempty"`
	Kind EventKind `json:"event"`
	IP   string    `json:"ip,omitempty"`
	User string    `json:"user,omitempty"`
	Cmd  string    `json:"cmd,omitempty"`
	Raw  string    `json:"raw,omitempty"`
}

// AlertKind classifies a security alert raised by the engine.
type AlertKind string

const (
	AlertSSHBruteforce        AlertKind = "ssh_bruteforce_suspected"
	AlertSSHSuccessAfterFails AlertKind = "ssh_success_after_failures"
	AlertSudoUsed             AlertKind = "sudo_used"
)

// Alert is one engine finding. Alerts are append-only and never mutated.
type Alert struct {
	ID         string     `json:"id"`
	TS         time.Time  `json:"ts"`
	Kind       AlertKind  `json:"alert"`
	Key        string     `json:"key,omitempty"` // typically the remote IP
	User       string     `json:"user,omitempty"`
	Cmd        string     `json:"cmd,omitempty"`
	Count      int        `json:"count,omitempty"`
	Window     string     `json:"window,omitempty"`
	LastFailTS *time.Time `json:"last_fail_ts,omitempty"`
	Evidence   *Event     `json:"source_event,omitempty"`
}

// Source identifies one remote event stream configured for pull collection.
// Immutable once loaded for a run.
type Source struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Host       string `yaml:"host" mapstructure:"host"`
	User       string `yaml:"user" mapstructure:"user"`
	Port       int    `yaml:"port" mapstructure:"port"`
	RemotePath string `yaml:"remote_path" mapstructure:"remote_path"`
}

// Collection cycle outcomes, one recorded per source per cycle.
const (
	StatusOK          = "ok"
	StatusNoChange    = "no_change"
	StatusUnreachable = "unreachable_or_missing"
	StatusFetchFailed = "fetch_failed"
)

// StatusRecord documents the outcome of one source in one collection cycle.
type StatusRecord struct {
	TS            time.Time `json:"ts"`
	Source        string    `json:"source"`
	Host          string    `json:"host"`
	Status        string    `json:"status"`
	Detail        string    `json:"detail,omitempty"`
	BytesRemote   uint64    `json:"bytes_remote,omitempty"`
	BytesAppended int64     `json:"bytes_appended,omitempty"`
	Offset        uint64    `json:"offset,omitempty"`
	NewOffset     uint64    `json:"new_offset,omitempty"`
	RemotePath    string    `json:"remote_path,omitempty"`
}
