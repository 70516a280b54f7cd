package scheduler

import (
	"time"

	"github.com/smallbiznis/tapcoin/internal/config"
)

// Config controls the reconciliation sweep.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	MaxAge      time.Duration
	JobTimeout  time.Duration
	MaxBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 30 * time.Second,
		BatchSize:   25,
		MaxAge:      2 * time.Hour,
		JobTimeout:  time.Minute,
		MaxBackoff:  5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Reconciler.Enabled,
		RunInterval: cfg.Reconciler.RunInterval,
		BatchSize:   cfg.Reconciler.BatchSize,
		MaxAge:      cfg.Reconciler.MaxAge,
		JobTimeout:  cfg.Reconciler.JobTimeout,
	}.withDefaults()
}

// LeaseTTL outlives the job deadline so a run finishing its last check is
// not overlapped by another replica.
func (c Config) LeaseTTL() time.Duration {
	return c.JobTimeout + leaseGrace
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	return c
}
