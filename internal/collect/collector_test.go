package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vigilproject/vigil/internal/model"
	"github.com/vigilproject/vigil/internal/offsets"
)

// fakeRunner serves stat and tail commands from an in-memory file per host.
type fakeRunner struct {
	files     map[string][]byte // host -> remote file content
	down      map[string]bool   // host -> refuse all commands
	failFetch map[string]bool   // host -> stat succeeds, tail fails
	calls     []string
}

func (r *fakeRunner) Output(_ context.Context, src model.Source, command string) ([]byte, error) {
	r.calls = append(r.calls, src.Host+": "+command)
	if r.down[src.Host] {
		return nil, errors.New("connection refused")
	}
	if strings.HasPrefix(command, "tail ") && r.failFetch[src.Host] {
		return nil, errors.New("broken pipe")
	}
	content, ok := r.files[src.Host]
	if strings.HasPrefix(command, "stat ") {
		if !ok {
			return nil, errors.New("exit status 1")
		}
		return []byte(strconv.Itoa(len(content)) + "\n"), nil
	}
	if strings.HasPrefix(command, "tail ") {
		// tail -c +N is 1-based; the || true makes a missing file empty.
		var n uint64
		if _, err := fmt.Sscanf(command, "tail -c +%d", &n); err != nil {
			return nil, err
		}
		if !ok || n > uint64(len(content)) {
			return nil, nil
		}
		return content[n-1:], nil
	}
	return nil, fmt.Errorf("unexpected command %q", command)
}

// captureSink collects status records in memory.
type captureSink struct {
	records []*model.StatusRecord
}

func (s *captureSink) Append(rec *model.StatusRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) last() *model.StatusRecord {
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

func testSource(name, host string) model.Source {
	return model.Source{Name: name, Host: host, User: "vigil", Port: 22, RemotePath: "/var/log/auth.log"}
}

type fixture struct {
	collector *Collector
	runner    *fakeRunner
	sink      *captureSink
	outDir    string
	offsets   *offsets.Store
}

func newFixture(t *testing.T, sources ...model.Source) *fixture {
	t.Helper()
	outDir := t.TempDir()

	store, err := offsets.Open(filepath.Join(outDir, "collector_offsets.json"))
	if err != nil {
		t.Fatalf("offsets.Open: %v", err)
	}

	runner := &fakeRunner{
		files:     make(map[string][]byte),
		down:      make(map[string]bool),
		failFetch: make(map[string]bool),
	}
	sink := &captureSink{}

	c, err := New(Config{OutDir: outDir, Once: true}, sources, runner, store, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{collector: c, runner: runner, sink: sink, outDir: outDir, offsets: store}
}

func (f *fixture) mirror(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(MirrorPath(f.outDir, name))
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	return data
}

func TestCollector_FirstCyclePullsWholeFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("line one\nline two\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if got := string(f.mirror(t, "web1")); got != "line one\nline two\n" {
		t.Fatalf("mirror = %q", got)
	}
	rec := f.sink.last()
	if rec == nil || rec.Status != model.StatusOK {
		t.Fatalf("status = %+v, want ok", rec)
	}
	if rec.BytesAppended != 18 || rec.NewOffset != 18 {
		t.Fatalf("appended = %d, new offset = %d, want 18/18", rec.BytesAppended, rec.NewOffset)
	}
	if got := f.offsets.Get("web1"); got != 18 {
		t.Fatalf("offset = %d, want 18", got)
	}
}

func TestCollector_SecondCycleFetchesOnlyNewBytes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("old\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	f.runner.files["web1.example"] = []byte("old\nnew\n")
	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	if got := string(f.mirror(t, "web1")); got != "old\nnew\n" {
		t.Fatalf("mirror = %q, want no duplicated bytes", got)
	}
	rec := f.sink.last()
	if rec.Status != model.StatusOK || rec.BytesAppended != 4 {
		t.Fatalf("status = %+v, want ok with 4 new bytes", rec)
	}
}

func TestCollector_NoChangeSkipsFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("static\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	callsAfterFirst := len(f.runner.calls)

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	rec := f.sink.last()
	if rec.Status != model.StatusNoChange {
		t.Fatalf("status = %q, want no_change", rec.Status)
	}
	// Only the stat command should run in an unchanged cycle.
	if got := len(f.runner.calls) - callsAfterFirst; got != 1 {
		t.Fatalf("commands in unchanged cycle = %d, want 1", got)
	}
	if got := string(f.mirror(t, "web1")); got != "static\n" {
		t.Fatalf("mirror = %q, want unchanged", got)
	}
}

func TestCollector_UnreachableHostIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"), testSource("db1", "db1.example"))
	f.runner.down["web1.example"] = true
	f.runner.files["db1.example"] = []byte("db line\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(f.sink.records) != 2 {
		t.Fatalf("records = %d, want 2", len(f.sink.records))
	}
	if got := f.sink.records[0].Status; got != model.StatusUnreachable {
		t.Fatalf("web1 status = %q, want unreachable_or_missing", got)
	}
	// The healthy source still gets collected in the same cycle.
	if got := f.sink.records[1].Status; got != model.StatusOK {
		t.Fatalf("db1 status = %q, want ok", got)
	}
	if got := string(f.mirror(t, "db1")); got != "db line\n" {
		t.Fatalf("db1 mirror = %q", got)
	}
}

func TestCollector_MissingRemoteFileIsUnreachable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	// Host answers but the file does not exist: stat fails.

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := f.sink.last().Status; got != model.StatusUnreachable {
		t.Fatalf("status = %q, want unreachable_or_missing", got)
	}
	if got := f.offsets.Get("web1"); got != 0 {
		t.Fatalf("offset = %d, want untouched 0", got)
	}
}

func TestCollector_FetchFailureLeavesOffsetUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("seed\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}

	// The file grows but the range fetch breaks mid-cycle.
	f.runner.files["web1.example"] = []byte("seed\nmore\n")
	f.runner.failFetch["web1.example"] = true
	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	rec := f.sink.last()
	if rec.Status != model.StatusFetchFailed {
		t.Fatalf("status = %q, want fetch_failed", rec.Status)
	}
	if rec.BytesRemote != 10 || rec.Offset != 5 {
		t.Fatalf("remote = %d, offset = %d, want 10/5", rec.BytesRemote, rec.Offset)
	}
	if got := f.offsets.Get("web1"); got != 5 {
		t.Fatalf("offset = %d, want 5 kept from the last good fetch", got)
	}
	if got := string(f.mirror(t, "web1")); got != "seed\n" {
		t.Fatalf("mirror = %q, want untouched by the failed fetch", got)
	}

	// Next healthy cycle picks up exactly the missed bytes.
	f.runner.failFetch["web1.example"] = false
	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	rec = f.sink.last()
	if rec.Status != model.StatusOK || rec.BytesAppended != 5 {
		t.Fatalf("recovery = %+v, want ok with 5 new bytes", rec)
	}
	if got := string(f.mirror(t, "web1")); got != "seed\nmore\n" {
		t.Fatalf("mirror after recovery = %q", got)
	}
}

func TestCollector_TruncationResetsOffset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("a long first file\n")

	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}

	// Remote file replaced by a shorter one (rotation).
	f.runner.files["web1.example"] = []byte("fresh\n")
	if err := f.collector.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	rec := f.sink.last()
	if rec.Status != model.StatusOK || rec.BytesAppended != 6 {
		t.Fatalf("status = %+v, want ok with full re-pull of 6 bytes", rec)
	}
	if got := f.offsets.Get("web1"); got != 6 {
		t.Fatalf("offset = %d, want 6", got)
	}
	if got := string(f.mirror(t, "web1")); got != "a long first file\nfresh\n" {
		t.Fatalf("mirror = %q, want old content kept and new file appended", got)
	}
}

func TestCollector_OffsetsSurviveRestart(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	offsetsPath := filepath.Join(outDir, "collector_offsets.json")
	src := testSource("web1", "web1.example")
	runner := &fakeRunner{
		files: map[string][]byte{"web1.example": []byte("persisted\n")},
		down:  map[string]bool{},
	}

	run := func() *captureSink {
		store, err := offsets.Open(offsetsPath)
		if err != nil {
			t.Fatalf("offsets.Open: %v", err)
		}
		sink := &captureSink{}
		c, err := New(Config{OutDir: outDir, Once: true}, []model.Source{src}, runner, store, sink, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := c.RunCycle(context.Background()); err != nil {
			t.Fatalf("RunCycle: %v", err)
		}
		return sink
	}

	run()
	sink := run() // fresh collector, same offsets file

	if got := sink.last().Status; got != model.StatusNoChange {
		t.Fatalf("status after restart = %q, want no_change", got)
	}
}

func TestCollector_RunOnceStopsAfterOneCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testSource("web1", "web1.example"))
	f.runner.files["web1.example"] = []byte("x\n")

	done := make(chan error, 1)
	go func() { done <- f.collector.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return in once mode")
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("records = %d, want exactly 1", len(f.sink.records))
	}
}

func TestNew_RequiresSources(t *testing.T) {
	t.Parallel()

	store, err := offsets.Open(filepath.Join(t.TempDir(), "offsets.json"))
	if err != nil {
		t.Fatalf("offsets.Open: %v", err)
	}
	if _, err := New(Config{OutDir: t.TempDir()}, nil, &fakeRunner{}, store, nil, nil); err == nil {
		t.Fatal("expected error for empty source list")
	}
}
