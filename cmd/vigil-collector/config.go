package main

import (
	"time"

	"github.com/vigilproject/vigil/internal/model"
)

const (
	defaultBindHost = "127.0.0.1"
	defaultAPIPort  = 3100
	defaultInterval = model.DefaultCycleInterval

	offsetsFileName = "collector_offsets.json"
	statusFileName  = "collector_status.jsonl"
	netTelemetryLog = "net_telemetry.jsonl"
)

// appConfig is internal runtime configuration for the collector daemon.
type appConfig struct {
	SourcesPath    string        `mapstructure:"sources"`
	OutDir         string        `mapstructure:"outdir"`
	Interval       time.Duration `mapstructure:"interval"`
	Once           bool          `mapstructure:"once"`
	SSHKey         string        `mapstructure:"ssh-key"`
	KnownHosts     string        `mapstructure:"known-hosts"` // empty = no host key verification
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	StatTimeout    time.Duration `mapstructure:"stat-timeout"`
	FetchTimeout   time.Duration `mapstructure:"fetch-timeout"`
	Snapshot       bool          `mapstructure:"snapshot"`      // inventory at startup
	NetTelemetry   bool          `mapstructure:"net-telemetry"` // one sample per cycle
	APIEnabled     bool          `mapstructure:"api-enabled"`
	APIPort        int           `mapstructure:"api-port"`
	APIAddr        string        `mapstructure:"api-addr"`
	ConfigPath     string        `mapstructure:"-"` // not from config file
}
