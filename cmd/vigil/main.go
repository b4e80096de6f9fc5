package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/vigil/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Vigil - Auth Event Monitor\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runMonitor(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("input", "/var/log/auth.log")
	v.SetDefault("input-format", formatAuth)
	v.SetDefault("from-start", false)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("alerts-out", filepath.Join(home, ".local", "share", "vigil", "alerts.jsonl"))
	v.SetDefault("echo-alerts", false)
	v.SetDefault("fail-threshold", defaultFailThreshold)
	v.SetDefault("window", defaultWindow)
	v.SetDefault("alert-sudo", false)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-dir", filepath.Join(home, ".local", "share", "vigil", "backups"))
	v.SetDefault("s3-use-ssl", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "vigil", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Input == "" {
		return cfg, fmt.Errorf("input path is required")
	}
	if cfg.InputFormat != formatAuth && cfg.InputFormat != formatJSONL {
		return cfg, fmt.Errorf("invalid input-format: %q (want %q or %q)", cfg.InputFormat, formatAuth, formatJSONL)
	}
	if cfg.FailThreshold <= 0 {
		return cfg, fmt.Errorf("invalid fail-threshold: %d", cfg.FailThreshold)
	}
	if cfg.Window <= 0 {
		return cfg, fmt.Errorf("invalid window: %s", cfg.Window)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.BackupEnabled && cfg.DBPath == "" {
		return cfg, fmt.Errorf("backup-enabled requires db-path (in-memory store cannot be backed up)")
	}

	// Expand ~ in paths.
	for _, p := range []*string{&cfg.Input, &cfg.EventsOut, &cfg.AlertsOut, &cfg.DBPath, &cfg.BackupDir} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}
