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

	"github.com/vigilproject/vigil/internal/alert"
	"github.com/vigilproject/vigil/internal/authparse"
	"github.com/vigilproject/vigil/internal/backup"
	"github.com/vigilproject/vigil/internal/follow"
	"github.com/vigilproject/vigil/internal/httpserver"
	"github.com/vigilproject/vigil/internal/jsonl"
	"github.com/vigilproject/vigil/internal/metrics"
	"github.com/vigilproject/vigil/internal/model"
	"github.com/vigilproject/vigil/internal/store"
)

// runMonitor drives the local monitoring pipeline:
// follow -> parse -> alert engine -> sinks.
func runMonitor(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	// Alert store backs the HTTP query surface. The alert file stays the
	// durable record.
	alertStore, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize alert store: %w", err)
	}
	defer alertStore.Close()

	if cfg.BackupEnabled {
		keeper, err := backup.Start(alertStore, backup.Config{
			Enabled:        true,
			Interval:       cfg.BackupInterval,
			LocalDir:       cfg.BackupDir,
			KeepLast:       cfg.BackupKeepLast,
			BucketURL:      cfg.BackupBucketURL,
			S3Endpoint:     cfg.S3Endpoint,
			S3Region:       cfg.S3Region,
			S3AccessKey:    cfg.S3AccessKey,
			S3SecretKey:    cfg.S3SecretKey,
			S3SessionToken: cfg.S3SessionToken,
			S3UseSSL:       cfg.S3UseSSL,
		}, metrics.NewBackupMetrics(nil))
		if err != nil {
			return fmt.Errorf("failed to start backups: %w", err)
		}
		defer keeper.Stop()
	}

	fileSink, err := alert.NewFileSink(cfg.AlertsOut)
	if err != nil {
		return fmt.Errorf("failed to open alert output: %w", err)
	}
	defer fileSink.Close()

	// The alert file and the query store are the durable record; losing
	// either means local storage is broken and the pipeline must stop.
	// Echo and NATS fan-out stay best-effort.
	durable := alert.MultiSink{fileSink, alert.SinkFunc(alertStore.InsertAlert)}
	var transient alert.MultiSink
	if cfg.EchoAlerts {
		transient = append(transient, alert.EchoSink{})
	}
	if cfg.NATSURL != "" {
		publisher, err := alert.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return fmt.Errorf("failed to connect alert publisher: %w", err)
		}
		defer publisher.Close()
		transient = append(transient, publisher)
	}

	// Optional mirror of parsed events, the collector-compatible JSONL shape.
	var eventsOut *jsonl.Appender
	if cfg.EventsOut != "" {
		eventsOut, err = jsonl.Open(cfg.EventsOut)
		if err != nil {
			return fmt.Errorf("failed to open events output: %w", err)
		}
		defer eventsOut.Close()
		// Start marker so downstream consumers know where a run began.
		if err := eventsOut.Append(map[string]any{
			"ts":     time.Now().Format(time.RFC3339),
			"host":   hostname,
			"event":  "monitor_start",
			"source": cfg.Input,
		}); err != nil {
			return fmt.Errorf("failed to write start marker: %w", err)
		}
	}

	m := metrics.NewMonitorMetrics(nil)

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, alertStore, nil)
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

	var parser model.LineParser
	switch cfg.InputFormat {
	case formatJSONL:
		parser = authparse.NewJSONLParser()
	default:
		parser = authparse.NewAuthLogParser(hostname)
	}

	engine := alert.NewEngine(alert.Config{
		FailThreshold: cfg.FailThreshold,
		Window:        cfg.Window,
		AlertOnSudo:   cfg.AlertSudo,
	})

	follower := follow.New(ctx, cfg.Input, follow.Config{
		PollInterval: cfg.PollInterval,
		FromStart:    cfg.FromStart,
	})

	printStartupBanner(cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for line := range follower.Lines() {
			m.LinesTotal.Inc()

			ev, ok := parser.Parse(line)
			if !ok {
				m.SkippedLines.Inc()
				continue
			}
			m.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()

			if eventsOut != nil {
				if err := eventsOut.Append(ev); err != nil {
					return fmt.Errorf("events output: %w", err)
				}
			}

			for _, a := range engine.Process(ev) {
				m.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
				if err := deliverAlert(durable, transient, a, m); err != nil {
					return err
				}
			}
			m.TrackedKeys.Set(float64(engine.TrackedKeys()))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("monitor: pipeline exited with error: %v", err)
		cancel()
		follower.Stop()
		return err
	}

	cancel()
	follower.Stop()
	signal.Stop(sigCh)
	return nil
}

// deliverAlert writes one alert to the durable record and fans it out to
// the transient sinks. A durable write failure is returned so the pipeline
// stops; transient failures are counted and logged only.
func deliverAlert(durable, transient model.AlertSink, a *model.Alert, m *metrics.MonitorMetrics) error {
	if err := durable.Emit(a); err != nil {
		return fmt.Errorf("alert output: %w", err)
	}
	if err := transient.Emit(a); err != nil {
		m.SinkErrors.Inc()
		log.Printf("monitor: alert sink: %v", err)
	}
	return nil
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

	logPath := filepath.Join(logDir, "vigil.log")
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
