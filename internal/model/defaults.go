package model

import "time"

// Shared defaults used by both the monitor and collector binaries.
const (
	DefaultFailThreshold  = 8
	DefaultWindow         = 5 * time.Minute
	DefaultPollInterval   = 200 * time.Millisecond
	DefaultReopenInterval = 1 * time.Second
	DefaultCycleInterval  = 15 * time.Second
	DefaultConnectTimeout = 8 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
)
