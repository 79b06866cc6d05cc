package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		WebDAV
		Sync
		Encryption
		Tasks
		Logging
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	WebDAV struct {
		BasePath      string        // Directory searched first for statistics.sqlite3
		Timeout       time.Duration // Per remote call
		MaxConcurrent int           // Remote calls in flight across all users
		TempDir       string        // Where snapshots are downloaded; os.TempDir() when empty
	}
	Sync struct {
		Enabled         bool
		Schedule        string // Cron format; takes precedence over IntervalMinutes
		IntervalMinutes int
		RatePerMinute   int // Manual triggers allowed per user per minute
		LockTimeout     time.Duration
	}
	Encryption struct {
		Key     string // Secret the credential encryption key is derived from
		KeyFile string // Generated secret, used when Key is empty
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
		DatabasePath    string // Queue database; next to the main one when empty
	}
	Logging struct {
		Level  string
		Format string // "pretty" or "json"
		File   string // Rotated log file; stdout only when empty
	}
	Auth struct {
		DefaultUserEnabled bool
		DefaultUsername    string
		UserHeader         string // Username header set by a trusted reverse proxy
	}
)

// CronSchedule returns the schedule used by the global sync job.
func (s Sync) CronSchedule() string {
	if s.Schedule != "" {
		return s.Schedule
	}
	minutes := s.IntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return fmt.Sprintf("@every %dm", minutes)
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// WebDAV defaults
	v.SetDefault("webdav_base_path", DefaultWebDAVBasePath)
	v.SetDefault("webdav_timeout", "30s")
	v.SetDefault("webdav_max_concurrent", 2)
	v.SetDefault("webdav_temp_dir", "")

	// Sync defaults
	v.SetDefault("auto_sync_enabled", true)
	v.SetDefault("sync_schedule", "")
	v.SetDefault("sync_interval_minutes", 60)
	v.SetDefault("sync_rate_per_minute", 6)
	v.SetDefault("sync_lock_timeout", "10m")

	v.SetDefault("encryption_key", "")
	v.SetDefault("encryption_key_file", DefaultEncryptionKeyFile)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("tasks_database_path", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "pretty")
	v.SetDefault("log_file", "")

	v.SetDefault("default_user_enabled", true)
	v.SetDefault("default_username", "koreader_user")
	v.SetDefault("auth_user_header", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		WebDAV: WebDAV{
			BasePath:      v.GetString("WEBDAV_BASE_PATH"),
			Timeout:       v.GetDuration("WEBDAV_TIMEOUT"),
			MaxConcurrent: v.GetInt("WEBDAV_MAX_CONCURRENT"),
			TempDir:       v.GetString("WEBDAV_TEMP_DIR"),
		},
		Sync: Sync{
			Enabled:         v.GetBool("AUTO_SYNC_ENABLED"),
			Schedule:        v.GetString("SYNC_SCHEDULE"),
			IntervalMinutes: v.GetInt("SYNC_INTERVAL_MINUTES"),
			RatePerMinute:   v.GetInt("SYNC_RATE_PER_MINUTE"),
			LockTimeout:     v.GetDuration("SYNC_LOCK_TIMEOUT"),
		},
		Encryption: Encryption{
			Key:     v.GetString("ENCRYPTION_KEY"),
			KeyFile: v.GetString("ENCRYPTION_KEY_FILE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
			DatabasePath:    v.GetString("TASKS_DATABASE_PATH"),
		},
		Logging: Logging{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
		Auth: Auth{
			DefaultUserEnabled: v.GetBool("DEFAULT_USER_ENABLED"),
			DefaultUsername:    v.GetString("DEFAULT_USERNAME"),
			UserHeader:         v.GetString("AUTH_USER_HEADER"),
		},
	}
}
