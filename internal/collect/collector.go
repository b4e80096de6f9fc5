package collect

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vigilproject/vigil/internal/metrics"
	"github.com/vigilproject/vigil/internal/model"
	"github.com/vigilproject/vigil/internal/offsets"
)

const (
	mirrorFileMode = 0644

	// DefaultStatTimeout bounds the remote size query.
	DefaultStatTimeout = 20 * time.Second
)

// Config holds the collector's runtime parameters.
type Config struct {
	OutDir       string        // mirror files, offsets, and status live here
	Interval     time.Duration // delay between cycles
	Once         bool          // run exactly one cycle and stop
	StatTimeout  time.Duration // bound on the remote size query
	FetchTimeout time.Duration // bound on the remote range fetch
}

// Collector pulls new bytes from every configured source, appends them to
// per-source mirror files, and persists offsets durably after each
// successful fetch. Sources are processed sequentially within a cycle; a
// slow or unreachable source costs at most its timeout.
type Collector struct {
	cfg     Config
	sources []model.Source
	runner  Runner
	offsets *offsets.Store
	status  model.StatusSink
	metrics *metrics.CollectorMetrics
	now     func() time.Time
}

// New builds a collector. It fails when no sources are configured: that is
// a configuration error, caught before any polling begins.
func New(cfg Config, sources []model.Source, runner Runner, store *offsets.Store, statusSink model.StatusSink, m *metrics.CollectorMetrics) (*Collector, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("collect: no sources configured")
	}
	if runner == nil {
		return nil, fmt.Errorf("collect: runner is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = model.DefaultCycleInterval
	}
	if cfg.StatTimeout <= 0 {
		cfg.StatTimeout = DefaultStatTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = model.DefaultFetchTimeout
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("collect: create outdir: %w", err)
	}
	return &Collector{
		cfg:     cfg,
		sources: sources,
		runner:  runner,
		offsets: store,
		status:  statusSink,
		metrics: m,
		now:     time.Now,
	}, nil
}

// MirrorPath returns the local mirror file for a source name. Naming is
// deterministic so downstream followers can be pointed at it.
func MirrorPath(outDir, name string) string {
	return filepath.Join(outDir, name+".jsonl")
}

// Run executes collection cycles until ctx is cancelled. In Once mode
// exactly one cycle executes. Local I/O failures are returned (the local
// environment is broken, no safe continuation); remote failures are
// recorded per source and retried next cycle.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := c.RunCycle(ctx); err != nil {
			return err
		}
		if c.cfg.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle processes every configured source once, in order.
func (c *Collector) RunCycle(ctx context.Context) error {
	for _, src := range c.sources {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.collectSource(ctx, src); err != nil {
			return err
		}
	}
	if c.metrics != nil {
		c.metrics.CyclesTotal.Inc()
	}
	return nil
}

// collectSource runs the stat/compare/fetch/append/persist sequence for one
// source. The returned error is non-nil only for local failures; every
// remote outcome becomes a status record.
func (c *Collector) collectSource(ctx context.Context, src model.Source) error {
	oldOffset := c.offsets.Get(src.Name)

	size, known := c.remoteSize(ctx, src)
	if !known {
		return c.record(src, &model.StatusRecord{
			Status: model.StatusUnreachable,
			Detail: fmt.Sprintf("could not stat %s", src.RemotePath),
		})
	}

	// A shrinking remote file means it was truncated or replaced. Reset to
	// 0 and re-pull the whole new file: discarding partial old data beats
	// splicing bytes from two different files.
	if size < oldOffset {
		log.Printf("collect: %s: remote size %d below offset %d, resetting offset", src.Name, size, oldOffset)
		oldOffset = 0
		if c.metrics != nil {
			c.metrics.TruncationResets.WithLabelValues(src.Name).Inc()
		}
	}

	if size == oldOffset {
		return c.record(src, &model.StatusRecord{
			Status:      model.StatusNoChange,
			BytesRemote: size,
		})
	}

	data, ok := c.fetchRange(ctx, src, oldOffset)
	if !ok {
		return c.record(src, &model.StatusRecord{
			Status:      model.StatusFetchFailed,
			BytesRemote: size,
			Offset:      oldOffset,
		})
	}

	// Mirror first, offset second: after a crash the mirror may be ahead
	// of the recorded offset (rare duplicate on re-fetch) but never behind
	// it (silent loss).
	appended, err := c.appendMirror(src.Name, data)
	if err != nil {
		return err
	}
	c.offsets.Set(src.Name, size)
	if err := c.offsets.Save(); err != nil {
		return err
	}

	if c.metrics != nil {
		c.metrics.BytesAppended.WithLabelValues(src.Name).Add(float64(appended))
	}
	log.Printf("collect: %s: +%d bytes (offset %d)", src.Name, appended, size)
	return c.record(src, &model.StatusRecord{
		Status:        model.StatusOK,
		BytesAppended: appended,
		NewOffset:     size,
		RemotePath:    src.RemotePath,
	})
}

// remoteSize queries the byte size of the source's remote file. Any
// failure, including non-numeric output, means "unknown", never zero.
func (c *Collector) remoteSize(ctx context.Context, src model.Source) (uint64, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatTimeout)
	defer cancel()

	out, err := c.runner.Output(ctx, src, fmt.Sprintf("stat -c %%s %s 2>/dev/null", shQuote(src.RemotePath)))
	if err != nil {
		return 0, false
	}
	size, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, false
	}
	return size, true
}

// fetchRange streams remote bytes from offset to end of file. tail -c +N is
// 1-based. The trailing "|| true" makes a missing remote file an empty
// successful read, matching the offset-reset edge case.
func (c *Collector) fetchRange(ctx context.Context, src model.Source, offset uint64) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	cmd := fmt.Sprintf("tail -c +%d %s 2>/dev/null || true", offset+1, shQuote(src.RemotePath))
	out, err := c.runner.Output(ctx, src, cmd)
	if err != nil {
		return nil, false
	}
	return out, true
}

// appendMirror appends fetched bytes verbatim to the source's mirror file.
func (c *Collector) appendMirror(name string, data []byte) (int64, error) {
	path := MirrorPath(c.cfg.OutDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, mirrorFileMode)
	if err != nil {
		return 0, fmt.Errorf("collect: open mirror %s: %w", path, err)
	}
	n, err := f.Write(data)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("collect: append mirror %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("collect: sync mirror %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("collect: close mirror %s: %w", path, err)
	}
	return int64(n), nil
}

// record appends one status record, filling the common fields. The status
// log lives on local disk; failing to write it means the local environment
// is broken and is escalated like any other local I/O failure.
func (c *Collector) record(src model.Source, rec *model.StatusRecord) error {
	rec.TS = c.now()
	rec.Source = src.Name
	rec.Host = src.Host
	if c.metrics != nil {
		c.metrics.SourceOutcomes.WithLabelValues(src.Name, rec.Status).Inc()
	}
	if c.status == nil {
		return nil
	}
	if err := c.status.Append(rec); err != nil {
		return fmt.Errorf("collect: status append: %w", err)
	}
	return nil
}
