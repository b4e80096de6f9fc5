package follow

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/vigilproject/vigil/internal/model"
)

// DefaultBuffer is the default channel buffer size for followed lines.
const DefaultBuffer = 10_000

// DefaultMaxLineSize bounds a single line; longer data is split.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// Config holds tunable parameters for a Follower.
type Config struct {
	PollInterval   time.Duration // how often to check for new data
	ReopenInterval time.Duration // backoff while the file is missing
	FromStart      bool          // read from the beginning instead of the end
	BufferSize     int
}

// followState is the follower's lifecycle. An explicit enum keeps "never
// opened" distinct from "closed pending reopen" after a rotation.
type followState int

const (
	stateOpening followState = iota
	stateReading
	stateReopening
)

// Follower tails a local append-only file and emits newly appended lines,
// surviving rotation (same path, new inode) and temporary absence of the
// file. Each Follower is single-pass: the sequence it produces is infinite
// and not restartable. Stop releases the handle at the next poll boundary.
type Follower struct {
	path   string
	cfg    Config
	lines  chan string
	cancel context.CancelFunc

	state   followState
	file    *os.File
	fileID  os.FileInfo // identity of the open handle, for rotation checks
	reader  *bufio.Reader
	partial []byte // unterminated trailing data, held until completed
}

// New starts following path. Lines appended before New are skipped unless
// cfg.FromStart is set. The follower never terminates on a missing file;
// it keeps retrying until stopped.
func New(ctx context.Context, path string, cfg Config) *Follower {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = model.DefaultPollInterval
	}
	if cfg.ReopenInterval <= 0 {
		cfg.ReopenInterval = model.DefaultReopenInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	f := &Follower{
		path:   path,
		cfg:    cfg,
		lines:  make(chan string, cfg.BufferSize),
		cancel: cancel,
		state:  stateOpening,
	}
	go f.run(ctx)
	return f
}

// Lines returns the channel of followed lines. It is closed after Stop.
func (f *Follower) Lines() <-chan string { return f.lines }

// Stop cancels polling and releases the file handle.
func (f *Follower) Stop() { f.cancel() }

// Name identifies this source kind.
func (f *Follower) Name() string { return "file" }

func (f *Follower) run(ctx context.Context) {
	defer close(f.lines)
	defer f.closeFile()

	for {
		var wait time.Duration
		switch f.state {
		case stateOpening:
			if f.open(f.cfg.FromStart) {
				continue
			}
			wait = f.cfg.ReopenInterval
		case stateReopening:
			// After a rotation the new file is read from the start so no
			// post-rotation line is lost.
			if f.open(true) {
				continue
			}
			wait = f.cfg.ReopenInterval
		case stateReading:
			emitted := f.drain(ctx)
			if ctx.Err() != nil {
				return
			}
			if f.rotated() {
				f.closeFile()
				f.state = stateReopening
				continue
			}
			if emitted {
				continue
			}
			wait = f.cfg.PollInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// open transitions to stateReading on success. fromStart selects whether
// reading begins at the start or the current end of the file.
func (f *Follower) open(fromStart bool) bool {
	file, err := os.Open(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("follow: open %s: %v", f.path, err)
		}
		return false
	}
	if !fromStart {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			log.Printf("follow: seek %s: %v", f.path, err)
			_ = file.Close()
			return false
		}
	}
	info, err := file.Stat()
	if err != nil {
		log.Printf("follow: stat %s: %v", f.path, err)
		_ = file.Close()
		return false
	}
	f.file = file
	f.fileID = info
	f.reader = bufio.NewReaderSize(file, 64*1024)
	f.partial = f.partial[:0]
	f.state = stateReading
	return true
}

// drain reads every complete line currently available and reports whether
// any line was emitted. Unterminated trailing bytes are held in f.partial.
func (f *Follower) drain(ctx context.Context) bool {
	emitted := false
	for {
		chunk, err := f.reader.ReadBytes('\n')
		if len(chunk) > 0 {
			f.partial = append(f.partial, chunk...)
			if f.partial[len(f.partial)-1] == '\n' {
				line := string(f.partial[:len(f.partial)-1])
				f.partial = f.partial[:0]
				select {
				case f.lines <- line:
					emitted = true
				case <-ctx.Done():
					return emitted
				}
			} else if len(f.partial) > DefaultMaxLineSize {
				// Pathologically long line; emit what we have rather than
				// growing without bound.
				line := string(f.partial)
				f.partial = f.partial[:0]
				select {
				case f.lines <- line:
					emitted = true
				case <-ctx.Done():
					return emitted
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("follow: read %s: %v", f.path, err)
			}
			return emitted
		}
	}
}

// rotated reports whether the path now refers to a different file than the
// open handle. Checked on every poll cycle, not only on read failure, so a
// rotation is noticed even when the new file stays quiet. A missing path is
// not a rotation; the old handle keeps serving until a new file appears.
func (f *Follower) rotated() bool {
	current, err := os.Stat(f.path)
	if err != nil {
		return false
	}
	return !os.SameFile(f.fileID, current)
}

func (f *Follower) closeFile() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.reader = nil
		f.fileID = nil
	}
}
