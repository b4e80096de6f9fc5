package main

import (
	"time"

	"github.com/vigilproject/vigil/internal/model"
)

const (
	defaultBindHost      = "127.0.0.1"
	defaultAPIPort       = 3000
	defaultFailThreshold = model.DefaultFailThreshold
	defaultWindow        = model.DefaultWindow
	defaultPollInterval  = model.DefaultPollInterval
)

// Input formats accepted by the monitor pipeline.
const (
	formatAuth  = "auth"  // raw auth.log lines
	formatJSONL = "jsonl" // structured event records, e.g. a collector mirror
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Input         string        `mapstructure:"input"`
	InputFormat   string        `mapstructure:"input-format"`
	FromStart     bool          `mapstructure:"from-start"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	EventsOut     string        `mapstructure:"events-out"`
	AlertsOut     string        `mapstructure:"alerts-out"`
	EchoAlerts    bool          `mapstructure:"echo-alerts"`
	FailThreshold int           `mapstructure:"fail-threshold"`
	Window        time.Duration `mapstructure:"window"`
	AlertSudo     bool          `mapstructure:"alert-sudo"`
	APIEnabled    bool          `mapstructure:"api-enabled"`
	APIPort       int           `mapstructure:"api-port"`
	APIAddr       string        `mapstructure:"api-addr"`
	DBPath        string        `mapstructure:"db-path"` // empty = in-memory
	NATSURL       string        `mapstructure:"nats-url"`
	NATSSubject   string        `mapstructure:"nats-subject"`

	BackupEnabled   bool          `mapstructure:"backup-enabled"`
	BackupInterval  time.Duration `mapstructure:"backup-interval"`
	BackupDir       string        `mapstructure:"backup-dir"`
	BackupKeepLast  int           `mapstructure:"backup-keep-last"`
	BackupBucketURL string        `mapstructure:"backup-bucket-url"`
	S3Endpoint      string        `mapstructure:"s3-endpoint"`
	S3Region        string        `mapstructure:"s3-region"`
	S3AccessKey     string        `mapstructure:"s3-access-key"`
	S3SecretKey     string        `mapstructure:"s3-secret-key"`
	S3SessionToken  string        `mapstructure:"s3-session-token"`
	S3UseSSL        bool          `mapstructure:"s3-use-ssl"`

	ConfigPath string `mapstructure:"-"` // not from config file
}
