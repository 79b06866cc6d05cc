// Package scheduler runs library syncs on a cron schedule: one global job
// that walks every user with WebDAV configured, plus optional per-user jobs
// with their own schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/statsync"
)

// ErrAlreadySyncing is returned by RunOnce while another pass is active.
var ErrAlreadySyncing = errors.New("scheduled sync already in progress")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field cron expression or an @descriptor.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Syncer runs a library sync for a user.
type Syncer interface {
	Sync(ctx context.Context, userID uint, opts statsync.SyncOptions) statsync.Result
}

// UserSource lists users that have WebDAV configured.
type UserSource interface {
	ConfiguredUserIDs(ctx context.Context) ([]uint, error)
}

// ScheduleStore persists per-user schedules across restarts.
type ScheduleStore interface {
	SetSyncSchedule(ctx context.Context, userID uint, schedule string) error
	ClearSyncSchedule(ctx context.Context, userID uint) error
	SyncSchedules(ctx context.Context) (map[uint]string, error)
}

type Config struct {
	Enabled  bool
	Schedule string
	// RunTimeout bounds a single user's sync. Default 10m.
	RunTimeout time.Duration
	// Store keeps per-user schedules; they live in memory only when nil.
	Store ScheduleStore
}

// Summary aggregates one pass over all users.
type Summary struct {
	Users     int
	Succeeded int
	Books     int
	Sessions  int
	Duration  time.Duration
}

// Job describes a scheduled entry.
type Job struct {
	Name     string     `json:"name"`
	UserID   *uint      `json:"user_id,omitempty"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// SyncScheduler manages periodic library syncs.
type SyncScheduler struct {
	syncer Syncer
	users  UserSource
	cfg    Config
	logger *slog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	userJobs   map[uint]userJob
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
}

type userJob struct {
	entryID  cron.EntryID
	schedule string
}

func NewSyncScheduler(syncer Syncer, users UserSource, cfg Config, logger *slog.Logger) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	return &SyncScheduler{
		syncer:   syncer,
		users:    users,
		cfg:      cfg,
		logger:   logger.With("component", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
		userJobs: map[uint]userJob{},
	}
}

// Start runs the cron engine until ctx ends. The global pass is scheduled
// only when automatic sync is enabled; per-user jobs fire either way.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.cfg.Enabled {
		if err := ValidateSchedule(s.cfg.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
		}
		entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
			s.RunOnce(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sync job: %w", err)
		}
		s.entryID = entryID
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	if s.entryID != 0 {
		s.logger.Info("scheduler started", "schedule", s.cfg.Schedule, "next_run", s.cron.Entry(s.entryID).Next)
	} else {
		s.logger.Info("scheduler started, automatic sync disabled", "user_jobs", len(s.userJobs))
	}

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for running jobs and stops the scheduler. Per-user jobs are
// kept and resume on the next Start.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	entryID := s.entryID
	s.entryID = 0
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// Running jobs take s.mu when they finish, so wait without holding it.
	<-s.cron.Stop().Done()
	if entryID != 0 {
		s.cron.Remove(entryID)
	}
	if cancel != nil {
		cancel()
	}

	s.logger.Info("scheduler stopped")
}

// Reschedule replaces the global schedule and restarts the scheduler.
func (s *SyncScheduler) Reschedule(ctx context.Context, schedule string) error {
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}

	s.Stop()

	s.mu.Lock()
	s.cfg.Schedule = schedule
	s.mu.Unlock()

	return s.Start(ctx)
}

// AddUserJob schedules an extra sync for one user, replacing any previous
// job for that user.
func (s *SyncScheduler) AddUserJob(userID uint, schedule string) error {
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	if s.cfg.Store != nil {
		if err := s.cfg.Store.SetSyncSchedule(context.Background(), userID, schedule); err != nil {
			return fmt.Errorf("failed to save schedule for user %d: %w", userID, err)
		}
	}
	return s.addUserJob(userID, schedule)
}

func (s *SyncScheduler) addUserJob(userID uint, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.userJobs[userID]; ok {
		s.cron.Remove(prev.entryID)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.syncUser(context.Background(), userID)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync for user %d: %w", userID, err)
	}
	s.userJobs[userID] = userJob{entryID: entryID, schedule: schedule}

	s.logger.Info("user sync scheduled", "user_id", userID, "schedule", schedule)
	return nil
}

// LoadUserJobs schedules every per-user job kept in the store. Invalid
// entries are logged and skipped.
func (s *SyncScheduler) LoadUserJobs(ctx context.Context) error {
	if s.cfg.Store == nil {
		return nil
	}
	schedules, err := s.cfg.Store.SyncSchedules(ctx)
	if err != nil {
		return err
	}
	for userID, schedule := range schedules {
		if err := ValidateSchedule(schedule); err != nil {
			s.logger.Warn("skipping invalid stored schedule", "user_id", userID, "schedule", schedule, "error", err)
			continue
		}
		if err := s.addUserJob(userID, schedule); err != nil {
			return err
		}
	}
	return nil
}

// RemoveUserJob drops a user's own schedule. Reports whether one existed.
func (s *SyncScheduler) RemoveUserJob(userID uint) bool {
	if s.cfg.Store != nil {
		if err := s.cfg.Store.ClearSyncSchedule(context.Background(), userID); err != nil {
			s.logger.Error("failed to clear stored schedule", "user_id", userID, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.userJobs[userID]
	if !ok {
		return false
	}
	s.cron.Remove(job.entryID)
	delete(s.userJobs, userID)
	return true
}

// Jobs lists the global job and all per-user jobs.
func (s *SyncScheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.userJobs)+1)
	if s.isRunning && s.entryID != 0 {
		jobs = append(jobs, Job{
			Name:     "sync_all_users",
			Schedule: s.cfg.Schedule,
			NextRun:  s.nextRun(s.entryID),
		})
	}

	ids := make([]uint, 0, len(s.userJobs))
	for id := range s.userJobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		userID := id
		job := s.userJobs[id]
		jobs = append(jobs, Job{
			Name:     fmt.Sprintf("sync_user_%d", id),
			UserID:   &userID,
			Schedule: job.schedule,
			NextRun:  s.nextRun(job.entryID),
		})
	}
	return jobs
}

func (s *SyncScheduler) nextRun(id cron.EntryID) *time.Time {
	if !s.isRunning || id == 0 {
		return nil
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// RunNow triggers an immediate pass over all users in the background.
func (s *SyncScheduler) RunNow() {
	go s.RunOnce(context.Background())
}

// IsRunning returns whether the scheduler is active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// AutoSyncEnabled reports whether the global pass is configured.
func (s *SyncScheduler) AutoSyncEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

// IsSyncing returns whether a pass over all users is in progress
func (s *SyncScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// GetNextRunTime returns when the next global pass will occur
func (s *SyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRun(s.entryID)
}

// RunOnce syncs every configured user in turn. A pass that starts while
// another is still running is skipped. One user's failure does not stop
// the others.
func (s *SyncScheduler) RunOnce(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.logger.Info("scheduled sync skipped, previous run still active")
		return Summary{}, ErrAlreadySyncing
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	started := time.Now()
	userIDs, err := s.users.ConfiguredUserIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for sync", "error", err)
		return Summary{}, err
	}

	summary := Summary{Users: len(userIDs)}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		res := s.syncUser(ctx, userID)
		if res.Success {
			summary.Succeeded++
			summary.Books += res.BooksSynced
			summary.Sessions += res.SessionsSynced
		}
	}
	summary.Duration = time.Since(started)

	s.logger.Info("scheduled sync finished",
		"succeeded", summary.Succeeded,
		"users", summary.Users,
		"books", summary.Books,
		"sessions", summary.Sessions,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, ctx.Err()
}

func (s *SyncScheduler) syncUser(ctx context.Context, userID uint) statsync.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	res := s.syncer.Sync(ctx, userID, statsync.SyncOptions{Trigger: entities.SyncTriggerScheduled})
	if !res.Success {
		s.logger.Warn("scheduled sync failed", "user_id", userID, "error", res.Error)
	}
	return res
}
