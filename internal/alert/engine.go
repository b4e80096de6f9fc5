// Package alert classifies streams of parsed authentication events into
// security alerts using per-key sliding time windows.
package alert

import (
	"time"

	"github.com/google/uuid"
	"github.com/vigilproject/vigil/internal/model"
)

// Config holds the engine's detection parameters.
type Config struct {
	FailThreshold int           // failures from the same key that trigger a bruteforce alert
	Window        time.Duration // sliding window duration
	AlertOnSudo   bool          // raise an alert on every sudo event
}

// windowState tracks recent failures for one key (typically an IP).
// Entries are oldest-first and pruned to the window on every update.
type windowState struct {
	failures []time.Time
	lastFail time.Time
}

// Engine consumes events and raises alerts. All time arithmetic uses the
// event's own timestamp, not arrival time, so replaying a captured stream
// produces identical alerts. State is owned by one control flow; the
// engine is not safe for concurrent use.
type Engine struct {
	cfg  Config
	keys map[string]*windowState
	now  func() time.Time
}

// NewEngine creates an engine with cfg, applying defaults for unset values.
func NewEngine(cfg Config) *Engine {
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = model.DefaultFailThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = model.DefaultWindow
	}
	return &Engine{
		cfg:  cfg,
		keys: make(map[string]*windowState),
		now:  time.Now,
	}
}

// Process handles one event and returns the alerts it raised, if any.
// Events without the fields a rule needs are ignored.
func (e *Engine) Process(ev *model.Event) []*model.Alert {
	if ev == nil {
		return nil
	}

	ts := ev.TS
	if ts.IsZero() {
		ts = e.now()
	}
	cutoff := ts.Add(-e.cfg.Window)

	var alerts []*model.Alert
	switch {
	case ev.Kind == model.EventSSHFailed && ev.IP != "":
		if a := e.onFailure(ev, ts, cutoff); a != nil {
			alerts = append(alerts, a)
		}
	case ev.Kind == model.EventSSHAccepted && ev.IP != "":
		if a := e.onAccept(ev, ts); a != nil {
			alerts = append(alerts, a)
		}
	case ev.Kind == model.EventSudo && e.cfg.AlertOnSudo:
		alerts = append(alerts, e.newAlert(model.AlertSudoUsed, ev, ev.User))
	}

	e.evict(cutoff)
	return alerts
}

// onFailure appends the failure, prunes the window, and fires exactly once
// when the pruned count reaches the threshold. Further failures inside the
// same window push the count past the threshold and do not re-fire.
func (e *Engine) onFailure(ev *model.Event, ts time.Time, cutoff time.Time) *model.Alert {
	st := e.keys[ev.IP]
	if st == nil {
		st = &windowState{}
		e.keys[ev.IP] = st
	}

	st.failures = append(st.failures, ts)
	keep := 0
	for keep < len(st.failures) && st.failures[keep].Before(cutoff) {
		keep++
	}
	st.failures = st.failures[keep:]
	st.lastFail = ts

	if len(st.failures) != e.cfg.FailThreshold {
		return nil
	}
	a := e.newAlert(model.AlertSSHBruteforce, ev, ev.IP)
	a.Count = len(st.failures)
	return a
}

// onAccept correlates a success against a recorded prior failure. The
// window boundary is inclusive: a success exactly window after the last
// failure still alerts.
func (e *Engine) onAccept(ev *model.Event, ts time.Time) *model.Alert {
	st := e.keys[ev.IP]
	if st == nil || st.lastFail.IsZero() {
		return nil
	}
	if ts.Sub(st.lastFail) > e.cfg.Window {
		return nil
	}
	a := e.newAlert(model.AlertSSHSuccessAfterFails, ev, ev.IP)
	lf := st.lastFail
	a.LastFailTS = &lf
	return a
}

// evict drops every key whose newest activity predates the cutoff. Active
// pruning bounds memory to the keys seen within the trailing window even
// when an attacker cycles through many distinct IPs.
func (e *Engine) evict(cutoff time.Time) {
	for key, st := range e.keys {
		if st.lastFail.Before(cutoff) {
			delete(e.keys, key)
		}
	}
}

// TrackedKeys reports how many keys currently hold window state.
func (e *Engine) TrackedKeys() int { return len(e.keys) }

func (e *Engine) newAlert(kind model.AlertKind, ev *model.Event, key string) *model.Alert {
	evidence := *ev
	return &model.Alert{
		ID:       uuid.NewString(),
		TS:       e.now(),
		Kind:     kind,
		Key:      key,
		User:     ev.User,
		Cmd:      ev.Cmd,
		Window:   e.cfg.Window.String(),
		Evidence: &evidence,
	}
}
