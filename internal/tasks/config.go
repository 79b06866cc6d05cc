package tasks

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds configuration for the task queue system. Attempts, backoff
// and timeouts are declared per task type in its Config method.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter returns tasks claimed by a dead worker to the queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often expired task records are purged. Default: 1h
	CleanupInterval time.Duration

	// DatabasePath overrides the queue database location. By default it sits
	// next to the main database with a "-tasks" suffix.
	DatabasePath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: 1 * time.Hour,
	}
}

// queuePath returns where the queue database lives for a main database at
// mainDBPath.
func (c Config) queuePath(mainDBPath string) string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	dir := filepath.Dir(mainDBPath)
	base := filepath.Base(mainDBPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, name+"-tasks"+filepath.Ext(base))
}
