package scheduler

import (
	"time"

	"github.com/smallbiznis/rfidtrack/internal/config"
)

// Config controls the background job loop.
type Config struct {
	RunInterval     time.Duration
	ArchiveLookback time.Duration
	JobTimeout      time.Duration
	EnabledJobs     []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Hour,
		ArchiveLookback: 24 * time.Hour,
		JobTimeout:      5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:     cfg.Export.ArchiveInterval,
		ArchiveLookback: cfg.Export.ArchiveLookback,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ArchiveLookback <= 0 {
		c.ArchiveLookback = defaults.ArchiveLookback
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
