package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigilproject/vigil/internal/collect"
	"github.com/vigilproject/vigil/internal/httpserver"
	"github.com/vigilproject/vigil/internal/jsonl"
	"github.com/vigilproject/vigil/internal/metrics"
	"github.com/vigilproject/vigil/internal/offsets"
	"github.com/vigilproject/vigil/internal/snapshot"
	"github.com/vigilproject/vigil/internal/status"
)

// runCollector drives the pull loop: load sources, restore offsets, then
// cycle stat/fetch/append/persist over SSH until interrupted.
func runCollector(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	sources, err := collect.LoadSources(cfg.SourcesPath)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}

	offsetsPath := filepath.Join(cfg.OutDir, offsetsFileName)
	offsetStore, err := offsets.Open(offsetsPath)
	if err != nil {
		return fmt.Errorf("failed to open offsets: %w", err)
	}

	statusWriter, err := status.Open(filepath.Join(cfg.OutDir, statusFileName))
	if err != nil {
		return fmt.Errorf("failed to open status log: %w", err)
	}
	defer statusWriter.Close()

	runner, err := collect.NewSSHRunner(cfg.SSHKey, cfg.KnownHosts, cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to configure ssh: %w", err)
	}

	m := metrics.NewCollectorMetrics(nil)

	collector, err := collect.New(collect.Config{
		OutDir:       cfg.OutDir,
		Interval:     cfg.Interval,
		Once:         cfg.Once,
		StatTimeout:  cfg.StatTimeout,
		FetchTimeout: cfg.FetchTimeout,
	}, sources, runner, offsetStore, statusWriter, m)
	if err != nil {
		return err
	}

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, nil, func() (map[string]uint64, error) {
			return offsets.Load(offsetsPath)
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, len(sources))

	if cfg.Snapshot {
		path, err := snapshot.WriteInventory(ctx, cfg.OutDir)
		if err != nil {
			log.Printf("collector: inventory snapshot failed: %v", err)
		} else {
			log.Printf("collector: inventory snapshot written to %s", path)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return collector.Run(gctx)
	})

	if cfg.NetTelemetry {
		g.Go(func() error {
			return sampleNetTelemetry(gctx, cfg, hostname)
		})
	}

	if err := g.Wait(); err != nil {
		cancel()
		return err
	}

	cancel()
	signal.Stop(sigCh)
	return nil
}

// sampleNetTelemetry appends one network sample per interval to a JSONL log
// next to the mirrors. In Once mode a single sample is taken. Sampling is
// best-effort: a failed read is logged and retried next interval.
func sampleNetTelemetry(ctx context.Context, cfg appConfig, hostname string) error {
	out, err := jsonl.Open(filepath.Join(cfg.OutDir, netTelemetryLog))
	if err != nil {
		return fmt.Errorf("net telemetry output: %w", err)
	}
	defer out.Close()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		sample, err := snapshot.CollectNetSample(ctx, hostname)
		if err != nil {
			log.Printf("collector: net sample failed: %v", err)
		} else if err := out.Append(sample); err != nil {
			return fmt.Errorf("net telemetry append: %w", err)
		}
		if cfg.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "vigil")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "vigil-collector.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
