package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vigilproject/vigil/internal/model"
)

type fakeAlertReader struct {
	alerts []model.Alert
	counts map[string]int64
	err    error
}

func (f *fakeAlertReader) RecentAlerts(limit int) ([]model.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.alerts) {
		return f.alerts[:limit], nil
	}
	return f.alerts, nil
}

func (f *fakeAlertReader) CountsByKind() (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func (f *fakeAlertReader) TotalAlertCount() (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.alerts)), nil
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return body
}

func testAlerts(n int) []model.Alert {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alerts := make([]model.Alert, n)
	for i := range alerts {
		alerts[i] = model.Alert{
			ID:   string(rune('a' + i)),
			TS:   base.Add(time.Duration(i) * time.Minute),
			Kind: model.AlertSSHBruteforce,
			Key:  "10.0.0.1",
		}
	}
	return alerts
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := NewServer("", &fakeAlertReader{alerts: testAlerts(2)}, nil)
	w := get(t, s, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", body["status"])
	}
	if body["alert_count"] != float64(2) {
		t.Fatalf("alert_count = %v, want 2", body["alert_count"])
	}
}

func TestHealth_WithoutAlertSurface(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, func() (map[string]uint64, error) { return nil, nil })
	w := get(t, s, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, present := decode(t, w)["alert_count"]; present {
		t.Fatal("alert_count should be omitted without an alert store")
	}
}

func TestAlerts(t *testing.T) {
	t.Parallel()

	s := NewServer("", &fakeAlertReader{alerts: testAlerts(3)}, nil)

	w := get(t, s, "/api/alerts")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decode(t, w); body["count"] != float64(3) {
		t.Fatalf("count = %v, want 3", body["count"])
	}

	w = get(t, s, "/api/alerts?limit=2")
	if body := decode(t, w); body["count"] != float64(2) {
		t.Fatalf("count with limit = %v, want 2", body["count"])
	}

	for _, bad := range []string{"0", "-5", "abc"} {
		w = get(t, s, "/api/alerts?limit="+bad)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: status = %d, want 400", bad, w.Code)
		}
	}
}

func TestAlertSummary(t *testing.T) {
	t.Parallel()

	s := NewServer("", &fakeAlertReader{counts: map[string]int64{"ssh_bruteforce_suspected": 4}}, nil)
	w := get(t, s, "/api/alerts/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	counts, ok := decode(t, w)["counts"].(map[string]any)
	if !ok {
		t.Fatalf("missing counts: %s", w.Body.String())
	}
	if counts["ssh_bruteforce_suspected"] != float64(4) {
		t.Fatalf("counts = %v", counts)
	}
}

func TestAlerts_StoreErrorIs500(t *testing.T) {
	t.Parallel()

	s := NewServer("", &fakeAlertReader{err: errors.New("db gone")}, nil)
	if w := get(t, s, "/api/alerts"); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestOffsets(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, func() (map[string]uint64, error) {
		return map[string]uint64{"web1": 4096}, nil
	})
	w := get(t, s, "/api/offsets")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	offsets, ok := decode(t, w)["offsets"].(map[string]any)
	if !ok {
		t.Fatalf("missing offsets: %s", w.Body.String())
	}
	if offsets["web1"] != float64(4096) {
		t.Fatalf("offsets = %v", offsets)
	}
}

func TestRoutesOmittedWithoutSurface(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, nil)
	if w := get(t, s, "/api/alerts"); w.Code != http.StatusNotFound {
		t.Fatalf("alerts without store: status = %d, want 404", w.Code)
	}
	if w := get(t, s, "/api/offsets"); w.Code != http.StatusNotFound {
		t.Fatalf("offsets without reader: status = %d, want 404", w.Code)
	}
}
