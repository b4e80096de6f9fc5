package main

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vigilproject/vigil/internal/alert"
	"github.com/vigilproject/vigil/internal/metrics"
	"github.com/vigilproject/vigil/internal/model"
)

func testAlert() *model.Alert {
	return &model.Alert{
		ID:   "a1",
		TS:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Kind: model.AlertSSHBruteforce,
		Key:  "203.0.113.7",
	}
}

func TestDeliverAlert_DurableFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	m := metrics.NewMonitorMetrics(prometheus.NewRegistry())
	durable := alert.SinkFunc(func(*model.Alert) error {
		return errors.New("disk full")
	})
	transient := alert.MultiSink(nil)

	if err := deliverAlert(durable, transient, testAlert(), m); err == nil {
		t.Fatal("durable sink failure must surface as an error")
	}
	if got := testutil.ToFloat64(m.SinkErrors); got != 0 {
		t.Fatalf("sink errors = %v, want 0 for a durable failure", got)
	}
}

func TestDeliverAlert_TransientFailureIsCountedNotFatal(t *testing.T) {
	t.Parallel()

	m := metrics.NewMonitorMetrics(prometheus.NewRegistry())
	var durableEmits int
	durable := alert.SinkFunc(func(*model.Alert) error {
		durableEmits++
		return nil
	})
	transient := alert.MultiSink{alert.SinkFunc(func(*model.Alert) error {
		return errors.New("broker unavailable")
	})}

	if err := deliverAlert(durable, transient, testAlert(), m); err != nil {
		t.Fatalf("transient failure must not stop the pipeline: %v", err)
	}
	if durableEmits != 1 {
		t.Fatalf("durable emits = %d, want 1", durableEmits)
	}
	if got := testutil.ToFloat64(m.SinkErrors); got != 1 {
		t.Fatalf("sink errors = %v, want 1", got)
	}
}

func TestDeliverAlert_AllSinksHealthy(t *testing.T) {
	t.Parallel()

	m := metrics.NewMonitorMetrics(prometheus.NewRegistry())
	var got []*model.Alert
	capture := alert.SinkFunc(func(a *model.Alert) error {
		got = append(got, a)
		return nil
	})

	if err := deliverAlert(capture, alert.MultiSink{capture}, testAlert(), m); err != nil {
		t.Fatalf("deliverAlert: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("emits = %d, want both sinks reached", len(got))
	}
}
