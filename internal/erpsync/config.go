package erpsync

import (
	"time"

	"github.com/smallbiznis/delinquency/internal/config"
)

// Config controls the snapshot refresh loop.
type Config struct {
	Enabled          bool
	Interval         time.Duration
	CustomerSyncHour int
	LockTTL          time.Duration
	RunTimeout       time.Duration
	Location         *time.Location
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Interval:         30 * time.Minute,
		CustomerSyncHour: 3,
		LockTTL:          15 * time.Minute,
		RunTimeout:       10 * time.Minute,
		Location:         time.UTC,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.Sync.Enabled,
		Interval:         cfg.Sync.Interval,
		CustomerSyncHour: cfg.Sync.CustomerSyncHour,
		LockTTL:          cfg.Sync.LockTTL,
		RunTimeout:       cfg.Sync.RunTimeout,
		Location:         cfg.Location(),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.CustomerSyncHour < 0 || c.CustomerSyncHour > 23 {
		c.CustomerSyncHour = def.CustomerSyncHour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = def.RunTimeout
	}
	// a lease shorter than a run would let a second replica start mid-run
	if c.LockTTL < c.RunTimeout {
		c.LockTTL = c.RunTimeout
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	return c
}
