package timestamp

import (
	"strings"
	"time"
)

// Layouts accepted by Parse, most specific first. Monitor output is ISO-8601
// (with or without zone); auth.log lines carry the classic syslog prefix.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Parse interprets s as a timestamp in one of the supported formats.
// Zone-less formats are taken in local time, matching how the monitor
// writes them.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const syslogLayout = "Jan _2 15:04:05"

// FromSyslogPrefix extracts the syslog timestamp from the head of a log
// line. Syslog timestamps carry no year, so the year is taken from now,
// rolling back one year when the result would land in the future (log
// lines written in late December read in early January).
func FromSyslogPrefix(line string, now time.Time) (time.Time, bool) {
	if len(line) < len("Jan  2 15:04:05") {
		return time.Time{}, false
	}
	head := line[:len("Jan  2 15:04:05")]
	t, err := time.ParseInLocation(syslogLayout, head, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	t = t.AddDate(now.Year(), 0, 0)
	if t.After(now.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}
