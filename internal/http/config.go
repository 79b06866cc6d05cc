package http

import "log/slog"

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. Optional dependencies may be nil; their
// endpoints then report the feature as disabled.
type RouterConfig struct {
	// Core dependencies
	Sync        SyncService
	Remote      RemoteBrowser
	Credentials CredentialStore
	Highlights  HighlightStore
	Health      *HealthController

	// Optional background work
	Tasks     TaskEnqueuer
	TaskState TaskStatusReader
	Scheduler UserScheduler
	Schedules ScheduleReader
	Limiter   TriggerLimiter

	Identity IdentityConfig
	Logger   *slog.Logger
}
