// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - statsync.Library: library replacement and stats (internal/statsync/reconciler.go)
//   - statsync.RunRecorder: sync run history (internal/statsync/service.go)
//   - statsync.CredentialStore: encrypted WebDAV credentials (internal/statsync/service.go)
//   - http.HighlightStore: annotation import and listing (internal/http/highlights.go)
//   - scheduler.ScheduleStore: per-user schedules (internal/scheduler/sync.go)
//
// ## Remote Storage Interfaces
//
//   - storage.Client: read-only file store access (internal/storage/client.go)
//
// ## Background Work Interfaces
//
//   - tasks.Syncer, scheduler.Syncer: run a sync for one user
//   - http.TaskEnqueuer, http.TaskStatusReader: the backlite task queue
//   - http.UserScheduler: per-user cron jobs
//
// # Adding a New Remote Store
//
// To read statistics from something other than WebDAV:
//
//  1. Create a provider in internal/storage/providers/
//
//     type Client struct { ... }
//
//     func (c *Client) List(ctx context.Context, dir string) ([]storage.FileInfo, error)
//     func (c *Client) Download(ctx context.Context, p string) (io.ReadCloser, error)
//     func (c *Client) Exists(ctx context.Context, p string) (bool, error)
//     func (c *Client) GetMetadata(ctx context.Context, p string) (*storage.FileInfo, error)
//
//     var _ storage.Client = (*Client)(nil)
//
//  2. Return it from the statsync.ClientFactory built in entrypoint/app.go
//
// Every call must honor ctx: the pool in storage/pool.go relies on it to
// enforce the per-call timeout.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
