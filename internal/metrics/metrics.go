// Package metrics holds the Prometheus instrumentation for both daemons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CollectorMetrics counts collection cycle outcomes.
type CollectorMetrics struct {
	CyclesTotal      prometheus.Counter
	SourceOutcomes   *prometheus.CounterVec
	BytesAppended    *prometheus.CounterVec
	TruncationResets *prometheus.CounterVec
}

// NewCollectorMetrics registers the collector metrics with reg. A nil reg
// uses the default registerer.
func NewCollectorMetrics(reg prometheus.Registerer) *CollectorMetrics {
	factory := promauto.With(orDefault(reg))
	return &CollectorMetrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_collector_cycles_total",
			Help: "Total number of collection cycles executed",
		}),
		SourceOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_collector_source_outcomes_total",
			Help: "Per-source cycle outcomes by status",
		}, []string{"source", "status"}),
		BytesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_collector_bytes_appended_total",
			Help: "Bytes appended to local mirror files",
		}, []string{"source"}),
		TruncationResets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_collector_truncation_resets_total",
			Help: "Offset resets caused by remote truncation or rotation",
		}, []string{"source"}),
	}
}

// MonitorMetrics counts pipeline activity in the monitor daemon.
type MonitorMetrics struct {
	LinesTotal   prometheus.Counter
	EventsTotal  *prometheus.CounterVec
	SkippedLines prometheus.Counter
	AlertsTotal  *prometheus.CounterVec
	SinkErrors   prometheus.Counter
	TrackedKeys  prometheus.Gauge
}

// NewMonitorMetrics registers the monitor metrics with reg. A nil reg uses
// the default registerer.
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	factory := promauto.With(orDefault(reg))
	return &MonitorMetrics{
		LinesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_monitor_lines_total",
			Help: "Raw lines consumed from the followed input",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_monitor_events_total",
			Help: "Parsed events by kind",
		}, []string{"kind"}),
		SkippedLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_monitor_skipped_lines_total",
			Help: "Lines that did not parse into an event",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_monitor_alerts_total",
			Help: "Alerts raised by kind",
		}, []string{"kind"}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_monitor_sink_errors_total",
			Help: "Failures delivering alerts to a sink",
		}),
		TrackedKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_monitor_tracked_keys",
			Help: "Keys currently holding sliding-window state",
		}),
	}
}

// BackupMetrics counts alert database snapshot outcomes.
type BackupMetrics struct {
	RunsTotal   *prometheus.CounterVec
	LastSuccess prometheus.Gauge
}

// NewBackupMetrics registers the backup metrics with reg. A nil reg uses
// the default registerer.
func NewBackupMetrics(reg prometheus.Registerer) *BackupMetrics {
	factory := promauto.With(orDefault(reg))
	return &BackupMetrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_backup_runs_total",
			Help: "Backup runs by outcome",
		}, []string{"outcome"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_backup_last_success_timestamp_seconds",
			Help: "Unix time of the most recent successful backup",
		}),
	}
}

func orDefault(reg prometheus.Registerer) prometheus.Registerer {
	if reg == nil {
		return prometheus.DefaultRegisterer
	}
	return reg
}
