// Package statsync brings a user's reading statistics from their WebDAV store
// into the library: locate the KOReader statistics file, download it,
// extract it and replace the user's books and sessions with its contents.
//
// # Usage
//
//	svc := statsync.NewService(deps, statsync.Config{BasePath: "/koreader"})
//	res := svc.Sync(ctx, userID, statsync.SyncOptions{Trigger: entities.SyncTriggerManual})
//	if !res.Success {
//		log.Println(res.Error)
//	}
package statsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/database/syncruns"
	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/koreader"
	"github.com/mrlokans/readstats/internal/storage"
)

var (
	ErrNoCredentials    = errors.New("webdav is not configured")
	ErrSnapshotNotFound = errors.New("statistics file not found")
	ErrSyncLockTimeout  = errors.New("another sync for this user did not finish in time")
)

// CredentialStore supplies decrypted remote store credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID uint) (*credentials.Credentials, error)
	Has(ctx context.Context, userID uint) (bool, error)
}

// RunRecorder keeps the sync history.
type RunRecorder interface {
	Start(ctx context.Context, userID uint, trigger entities.SyncTrigger) (*entities.SyncRun, error)
	Complete(ctx context.Context, id string, outcome syncruns.Outcome) error
	ListForUser(ctx context.Context, userID uint, limit int) ([]entities.SyncRun, error)
	LastCompleted(ctx context.Context, userID uint) (*entities.SyncRun, error)
}

// Library is the persistence the service needs from the books repository.
type Library interface {
	LibraryStore
	GetLibraryStats(ctx context.Context, userID uint) (*books.LibraryStats, error)
}

// Failure codes reported in Result.Code.
const (
	CodeNotConfigured  = "not_configured"
	CodeNotFound       = "not_found"
	CodeBusy           = "busy"
	CodeRemoteError    = "remote_error"
	CodeDownloadFailed = "download_failed"
	CodeInvalidFile    = "invalid_snapshot"
	CodeFailed         = "failed"
)

// ClientFactory builds a remote store client for a set of credentials.
type ClientFactory func(creds credentials.Credentials) storage.Client

type Config struct {
	// BasePath is searched first unless the user's credentials name their own.
	BasePath string
	// TempDir receives downloaded snapshots; os.TempDir() when empty.
	TempDir string
	// LockTimeout bounds how long a sync waits for another one of the same
	// user. Zero waits as long as ctx allows.
	LockTimeout time.Duration
}

type Deps struct {
	Credentials CredentialStore
	Runs        RunRecorder
	Library     Library
	NewClient   ClientFactory
	Pool        *storage.Pool
	Logger      *slog.Logger
}

// SyncOptions tunes a single sync.
type SyncOptions struct {
	// RemotePath skips discovery and uses this file directly.
	RemotePath string
	Trigger    entities.SyncTrigger
}

// Result is what callers see of a sync. Failures are reported here, never
// as partially replaced data.
type Result struct {
	Success         bool   `json:"success"`
	RunID           string `json:"run_id,omitempty"`
	BooksSynced     int    `json:"books_synced"`
	SessionsSynced  int    `json:"sessions_synced"`
	BooksCleared    int    `json:"books_cleared"`
	SessionsCleared int    `json:"sessions_cleared"`
	RemotePathUsed  string `json:"remote_path_used,omitempty"`
	Error           string `json:"error,omitempty"`
	Code            string `json:"code,omitempty"`
}

type Service struct {
	creds      CredentialStore
	runs       RunRecorder
	library    Library
	newClient  ClientFactory
	pool       *storage.Pool
	locator    *koreader.Locator
	retriever  *koreader.Retriever
	extractor  *koreader.Extractor
	reconciler *Reconciler
	locks      *userLocks
	cfg        Config
	logger     *slog.Logger
}

func NewService(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := deps.Pool
	if pool == nil {
		pool = storage.NewPool(2, 30*time.Second)
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/koreader"
	}

	return &Service{
		creds:      deps.Credentials,
		runs:       deps.Runs,
		library:    deps.Library,
		newClient:  deps.NewClient,
		pool:       pool,
		locator:    koreader.NewLocator(logger),
		retriever:  koreader.NewRetriever(cfg.TempDir, logger),
		extractor:  koreader.NewExtractor(logger),
		reconciler: NewReconciler(deps.Library, logger),
		locks:      newUserLocks(),
		cfg:        cfg,
		logger:     logger.With("component", "statsync"),
	}
}

// Sync runs locate, retrieve, extract and reconcile for one user. Syncs of
// the same user never overlap; a second caller waits for the first.
func (s *Service) Sync(ctx context.Context, userID uint, opts SyncOptions) Result {
	if opts.Trigger == "" {
		opts.Trigger = entities.SyncTriggerManual
	}
	logger := s.logger.With("user_id", userID, "trigger", opts.Trigger)

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		logger.Warn("sync not started", "error", err)
		return failed(err)
	}
	defer unlock()

	started := time.Now()
	run, err := s.runs.Start(ctx, userID, opts.Trigger)
	if err != nil {
		logger.Error("failed to record sync start", "error", err)
	}

	res := s.sync(ctx, userID, opts, logger)

	if run != nil {
		res.RunID = run.ID
		outcome := syncruns.Outcome{
			Succeeded:       res.Success,
			RemotePath:      res.RemotePathUsed,
			BooksSynced:     res.BooksSynced,
			SessionsSynced:  res.SessionsSynced,
			BooksCleared:    res.BooksCleared,
			SessionsCleared: res.SessionsCleared,
			Error:           res.Error,
		}
		if err := s.runs.Complete(context.WithoutCancel(ctx), run.ID, outcome); err != nil {
			logger.Error("failed to record sync outcome", "run_id", run.ID, "error", err)
		}
	}

	if res.Success {
		logger.Info("sync completed",
			"remote_path", res.RemotePathUsed,
			"books", res.BooksSynced,
			"sessions", res.SessionsSynced,
			"duration", time.Since(started),
		)
	} else {
		logger.Warn("sync failed", "error", res.Error, "duration", time.Since(started))
	}
	return res
}

func (s *Service) lockUser(ctx context.Context, userID uint) (func(), error) {
	lockCtx := ctx
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}

	unlock, err := s.locks.lock(lockCtx, userID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrSyncLockTimeout
		}
		return nil, fmt.Errorf("waiting for running sync: %w", err)
	}
	return unlock, nil
}

func (s *Service) sync(ctx context.Context, userID uint, opts SyncOptions, logger *slog.Logger) Result {
	creds, err := s.creds.Get(ctx, userID)
	if err != nil {
		return failed(fmt.Errorf("failed to load webdav credentials: %w", err))
	}
	if creds == nil {
		return failed(ErrNoCredentials)
	}

	client := s.pool.Wrap(s.newClient(*creds))

	candidates := []string{opts.RemotePath}
	if opts.RemotePath == "" {
		base := creds.BasePath
		if base == "" {
			base = s.cfg.BasePath
		}
		candidates = koreader.CandidatePaths(base)
	}

	remotePath, found, err := s.locator.Locate(ctx, client, candidates)
	if err != nil {
		return failed(err)
	}
	if !found {
		return failed(fmt.Errorf("%w on webdav (tried %d locations)", ErrSnapshotNotFound, len(candidates)))
	}
	logger.Debug("statistics file located", "remote_path", remotePath)

	var rec ReconcileResult
	err = s.retriever.With(ctx, client, userID, remotePath, func(snap *koreader.LocalSnapshot) error {
		extracted, err := s.extractor.Extract(ctx, snap.Path)
		if err != nil {
			return err
		}
		rec, err = s.reconciler.Reconcile(ctx, userID, extracted)
		if err != nil {
			return fmt.Errorf("failed to replace library: %w", err)
		}
		return nil
	})
	if err != nil {
		res := failed(err)
		res.RemotePathUsed = remotePath
		return res
	}

	return Result{
		Success:         true,
		BooksSynced:     rec.BooksSynced,
		SessionsSynced:  rec.SessionsSynced,
		BooksCleared:    rec.BooksCleared,
		SessionsCleared: rec.SessionsCleared,
		RemotePathUsed:  remotePath,
	}
}

func failed(err error) Result {
	return Result{Error: err.Error(), Code: failureCode(err)}
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, ErrNoCredentials):
		return CodeNotConfigured
	case errors.Is(err, ErrSnapshotNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSyncLockTimeout):
		return CodeBusy
	case errors.Is(err, koreader.ErrLookupFailed):
		return CodeRemoteError
	case errors.Is(err, koreader.ErrDownloadFailed):
		return CodeDownloadFailed
	case errors.Is(err, koreader.ErrInvalidSnapshot):
		return CodeInvalidFile
	default:
		return CodeFailed
	}
}

// IsSyncing reports whether a sync for userID is running or queued.
func (s *Service) IsSyncing(userID uint) bool {
	return s.locks.held(userID)
}
