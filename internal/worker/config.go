package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the scheduled job worker.
type Config struct {
	// JobTimeout is the maximum time a single run is allowed to take.
	// If a run exceeds this timeout, its context is canceled.
	// Default: 5 minutes
	JobTimeout time.Duration

	// ShutdownTimeout is how long to wait for running jobs to complete during graceful shutdown.
	// After this timeout, the worker stops even if jobs are still running.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		JobTimeout:      5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
// Returns an error if any values are invalid.
func (c Config) Validate() error {
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
