package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/database/syncruns"
	"github.com/mrlokans/readstats/internal/database/users"
	"github.com/mrlokans/readstats/internal/http"
	"github.com/mrlokans/readstats/internal/ratelimit"
	"github.com/mrlokans/readstats/internal/scheduler"
	"github.com/mrlokans/readstats/internal/settingsstore"
	"github.com/mrlokans/readstats/internal/statsync"
	"github.com/mrlokans/readstats/internal/storage"
	"github.com/mrlokans/readstats/internal/storage/providers/webdav"
	"github.com/mrlokans/readstats/internal/storage/storagetest"
	"github.com/mrlokans/readstats/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ statsync.Library = (*books.Repository)(nil)
var _ statsync.RunRecorder = (*syncruns.Repository)(nil)
var _ statsync.CredentialStore = (*credentials.Store)(nil)

var _ http.HighlightStore = (*books.Repository)(nil)
var _ http.CredentialStore = (*credentials.Store)(nil)
var _ http.UserProvisioner = (*users.Repository)(nil)
var _ http.ScheduleReader = (*settingsstore.SettingsStore)(nil)

// =============================================================================
// Remote Storage
// =============================================================================

var _ storage.Client = (*webdav.Client)(nil)
var _ storage.Client = (*storagetest.Memory)(nil)

// =============================================================================
// Sync Engine
// =============================================================================

var _ http.SyncService = (*statsync.Service)(nil)
var _ http.RemoteBrowser = (*statsync.Service)(nil)
var _ tasks.Syncer = (*statsync.Service)(nil)
var _ scheduler.Syncer = (*statsync.Service)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ http.TaskEnqueuer = (*tasks.Client)(nil)
var _ http.TaskStatusReader = (*tasks.Client)(nil)
var _ http.Pinger = (*tasks.Client)(nil)
var _ tasks.StaleRunCleaner = (*syncruns.Repository)(nil)

var _ http.UserScheduler = (*scheduler.SyncScheduler)(nil)
var _ http.SchedulerState = (*scheduler.SyncScheduler)(nil)
var _ scheduler.UserSource = (*credentials.Store)(nil)
var _ scheduler.ScheduleStore = (*settingsstore.SettingsStore)(nil)

var _ http.TriggerLimiter = (*ratelimit.UserLimiter)(nil)
