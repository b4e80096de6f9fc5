// Package backup keeps rolling snapshots of the alert database: a local
// copy on an interval, retention by count, and optional shipping to an
// S3-compatible bucket.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vigilproject/vigil/internal/metrics"
)

const (
	DefaultInterval = 6 * time.Hour
	DefaultKeepLast = 24

	snapshotGlob    = "vigil-*.duckdb"
	snapshotTimeFmt = "20060102-150405"
)

// Snapshotter is what the alert store must provide: a durable copy of
// itself at a destination path.
type Snapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// Uploader ships one finished snapshot off-host.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// Config controls the backup schedule and destinations.
type Config struct {
	Enabled   bool
	Interval  time.Duration
	LocalDir  string
	KeepLast  int
	BucketURL string // s3://bucket[/prefix], empty disables uploads

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string
	S3UseSSL       bool
}

// Keeper owns the backup schedule for one store. Snapshot failures are
// logged and counted, never fatal to the daemon.
type Keeper struct {
	store    Snapshotter
	cfg      Config
	uploader Uploader
	metrics  *metrics.BackupMetrics
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start validates cfg and launches the backup loop. It returns (nil, nil)
// when backups are disabled; callers must guard Stop accordingly.
func Start(store Snapshotter, cfg Config, m *metrics.BackupMetrics) (*Keeper, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil || store.DBPath() == "" {
		return nil, fmt.Errorf("backup: an on-disk database is required")
	}
	if cfg.LocalDir == "" {
		return nil, fmt.Errorf("backup: local directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = DefaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create local directory: %w", err)
	}

	k := &Keeper{store: store, cfg: cfg, metrics: m, now: time.Now}
	if cfg.BucketURL != "" {
		up, err := newCLIUploader(s3ConfigFrom(cfg))
		if err != nil {
			return nil, err
		}
		k.uploader = up
	}

	k.ctx, k.cancel = context.WithCancel(context.Background())
	k.wg.Add(1)
	go k.run()
	return k, nil
}

// Stop cancels any in-flight upload and waits for the loop to exit.
func (k *Keeper) Stop() {
	k.cancel()
	k.wg.Wait()
}

func (k *Keeper) run() {
	defer k.wg.Done()

	// First snapshot right away: a restart should not wait a full interval
	// to regain backup coverage.
	k.observe(k.Snapshot(k.ctx))

	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-k.ctx.Done():
			return
		case <-ticker.C:
			k.observe(k.Snapshot(k.ctx))
		}
	}
}

func (k *Keeper) observe(err error) {
	if err != nil {
		if k.metrics != nil {
			k.metrics.RunsTotal.WithLabelValues("failed").Inc()
		}
		log.Printf("backup: %v", err)
		return
	}
	if k.metrics != nil {
		k.metrics.RunsTotal.WithLabelValues("ok").Inc()
		k.metrics.LastSuccess.Set(float64(k.now().Unix()))
	}
}

// Snapshot takes one backup: local copy, optional upload, then retention.
func (k *Keeper) Snapshot(ctx context.Context) error {
	name := "vigil-" + k.now().UTC().Format(snapshotTimeFmt) + ".duckdb"
	dst := filepath.Join(k.cfg.LocalDir, name)

	if err := k.store.SnapshotTo(dst); err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	log.Printf("backup: wrote %s", dst)

	if k.uploader != nil {
		if err := k.uploader.Upload(ctx, dst); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		log.Printf("backup: uploaded %s", name)
	}
	return k.prune()
}

// prune removes the oldest local snapshots beyond KeepLast. The timestamped
// names sort oldest first.
func (k *Keeper) prune() error {
	snaps, err := filepath.Glob(filepath.Join(k.cfg.LocalDir, snapshotGlob))
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) <= k.cfg.KeepLast {
		return nil
	}
	sort.Strings(snaps)
	for _, old := range snaps[:len(snaps)-k.cfg.KeepLast] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune %s: %w", old, err)
		}
	}
	return nil
}
