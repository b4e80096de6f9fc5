package follow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		PollInterval:   5 * time.Millisecond,
		ReopenInterval: 5 * time.Millisecond,
		FromStart:      true,
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func nextLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("lines channel closed unexpectedly")
		}
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func expectQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case line, ok := <-ch:
		if ok {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(d):
	}
}

func TestFollower_FromStart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "first\nsecond\n")

	f := New(context.Background(), path, fastConfig())
	defer f.Stop()

	if got := nextLine(t, f.Lines()); got != "first" {
		t.Fatalf("line 1 = %q, want first", got)
	}
	if got := nextLine(t, f.Lines()); got != "second" {
		t.Fatalf("line 2 = %q, want second", got)
	}
}

func TestFollower_FromEndSkipsExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "history\n")

	cfg := fastConfig()
	cfg.FromStart = false
	f := New(context.Background(), path, cfg)
	defer f.Stop()

	// Give the follower time to open and seek to the end.
	time.Sleep(200 * time.Millisecond)
	appendLine(t, path, "live\n")

	if got := nextLine(t, f.Lines()); got != "live" {
		t.Fatalf("line = %q, want the post-start line only", got)
	}
}

func TestFollower_EmitsAppendedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "one\n")

	f := New(context.Background(), path, fastConfig())
	defer f.Stop()

	if got := nextLine(t, f.Lines()); got != "one" {
		t.Fatalf("line = %q, want one", got)
	}

	appendLine(t, path, "two\n")
	if got := nextLine(t, f.Lines()); got != "two" {
		t.Fatalf("line = %q, want two", got)
	}
}

func TestFollower_HoldsPartialLineUntilNewline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "partia")

	f := New(context.Background(), path, fastConfig())
	defer f.Stop()

	expectQuiet(t, f.Lines(), 100*time.Millisecond)

	appendLine(t, path, "l line\n")
	if got := nextLine(t, f.Lines()); got != "partial line" {
		t.Fatalf("line = %q, want the completed line", got)
	}
}

func TestFollower_SurvivesRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log")
	appendLine(t, path, "before-0\n")

	f := New(context.Background(), path, fastConfig())
	defer f.Stop()

	for i := 0; i < 3; i++ {
		if got, want := nextLine(t, f.Lines()), fmt.Sprintf("before-%d", i); got != want {
			t.Fatalf("rotation %d: line = %q, want %q", i, got, want)
		}

		rotated := filepath.Join(dir, fmt.Sprintf("auth.log.%d", i))
		if err := os.Rename(path, rotated); err != nil {
			t.Fatalf("rotate: %v", err)
		}
		appendLine(t, path, fmt.Sprintf("after-%d\n", i))

		if got, want := nextLine(t, f.Lines()), fmt.Sprintf("after-%d", i); got != want {
			t.Fatalf("rotation %d: line = %q, want %q", i, got, want)
		}

		appendLine(t, path, fmt.Sprintf("before-%d\n", i+1))
	}
}

func TestFollower_WaitsForMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")

	f := New(context.Background(), path, fastConfig())
	defer f.Stop()

	expectQuiet(t, f.Lines(), 100*time.Millisecond)

	appendLine(t, path, "finally\n")
	if got := nextLine(t, f.Lines()); got != "finally" {
		t.Fatalf("line = %q, want finally", got)
	}
}

func TestFollower_StopClosesChannel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "x\n")

	f := New(context.Background(), path, fastConfig())
	if got := nextLine(t, f.Lines()); got != "x" {
		t.Fatalf("line = %q, want x", got)
	}

	f.Stop()

	select {
	case _, ok := <-f.Lines():
		if ok {
			// A buffered line may still arrive; the channel must close after.
			select {
			case _, ok := <-f.Lines():
				if ok {
					t.Fatal("channel still open after Stop")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("channel not closed after Stop")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after Stop")
	}
}

func TestFollower_ParentContextCancelStops(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.log")
	appendLine(t, path, "x\n")

	ctx, cancel := context.WithCancel(context.Background())
	f := New(ctx, path, fastConfig())

	if got := nextLine(t, f.Lines()); got != "x" {
		t.Fatalf("line = %q, want x", got)
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-f.Lines():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}
