package authparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/vigilproject/vigil/internal/model"
	"github.com/vigilproject/vigil/internal/timestamp"
)

// Patterns for the Debian/Ubuntu auth.log dialect. The format varies
// slightly across distros; these are deliberately loose matches.
var (
	reFailed   = regexp.MustCompile(`sshd\[\d+\]: Failed password for (invalid user )?(\S+) from (\S+)`)
	reAccepted = regexp.MustCompile(`sshd\[\d+\]: Accepted (?:password|publickey) for (\S+) from (\S+)`)
	reSudo     = regexp.MustCompile(`sudo: +(\S+) : .*COMMAND=(.+)$`)
)

// AuthLogParser turns raw auth.log lines into structured events. Lines that
// match none of the patterns are not events (ok=false), not errors.
type AuthLogParser struct {
	host string
	now  func() time.Time
}

// NewAuthLogParser creates a parser that stamps events with host. The
// event timestamp comes from the line's syslog prefix when present and
// from the processing clock otherwise.
func NewAuthLogParser(host string) *AuthLogParser {
	return &AuthLogParser{host: host, now: time.Now}
}

// Parse implements model.LineParser.
func (p *AuthLogParser) Parse(line string) (*model.Event, bool) {
	kind, user, ip, cmd := classify(line)
	if kind == "" {
		return nil, false
	}

	now := p.now()
	ts, ok := timestamp.FromSyslogPrefix(line, now)
	if !ok {
		ts = now
	}

	return &model.Event{
		TS:   ts,
		Host: p.host,
		Kind: kind,
		IP:   ip,
		User: user,
		Cmd:  cmd,
		Raw:  line,
	}, true
}

func classify(line string) (kind model.EventKind, user, ip, cmd string) {
	if m := reFailed.FindStringSubmatch(line); m != nil {
		return model.EventSSHFailed, m[2], m[3], ""
	}
	if m := reAccepted.FindStringSubmatch(line); m != nil {
		return model.EventSSHAccepted, m[1], m[2], ""
	}
	if m := reSudo.FindStringSubmatch(line); m != nil {
		return model.EventSudo, m[1], "", strings.TrimSpace(m[2])
	}
	return "", "", "", ""
}
