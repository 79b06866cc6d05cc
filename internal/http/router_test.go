package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/crypto"
	"github.com/mrlokans/readstats/internal/database"
	"github.com/mrlokans/readstats/internal/database/books"
	"github.com/mrlokans/readstats/internal/database/settings"
	"github.com/mrlokans/readstats/internal/database/syncruns"
	"github.com/mrlokans/readstats/internal/database/users"
	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/koreader/koreadertest"
	"github.com/mrlokans/readstats/internal/ratelimit"
	"github.com/mrlokans/readstats/internal/scheduler"
	"github.com/mrlokans/readstats/internal/settingsstore"
	"github.com/mrlokans/readstats/internal/statsync"
	"github.com/mrlokans/readstats/internal/storage"
	"github.com/mrlokans/readstats/internal/storage/storagetest"
	"github.com/mrlokans/readstats/internal/tasks"
)

type fakeQueue struct {
	mu     sync.Mutex
	queued []backlite.Task
	err    error
}

func (q *fakeQueue) Enqueue(task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.queued = append(q.queued, task)
	return "task-1", nil
}

func (q *fakeQueue) Status(_ context.Context, id string) (backlite.TaskStatus, error) {
	if id == "task-1" {
		return backlite.TaskStatusRunning, nil
	}
	return backlite.TaskStatusNotFound, nil
}

type fakeScheduler struct {
	jobs map[uint]string
	runs int
}

func (f *fakeScheduler) AddUserJob(userID uint, schedule string) error {
	if err := scheduler.ValidateSchedule(schedule); err != nil {
		return err
	}
	f.jobs[userID] = schedule
	return nil
}

func (f *fakeScheduler) RemoveUserJob(userID uint) bool {
	_, ok := f.jobs[userID]
	delete(f.jobs, userID)
	return ok
}

func (f *fakeScheduler) Jobs() []scheduler.Job {
	jobs := []scheduler.Job{{Name: "sync_all_users", Schedule: "@hourly"}}
	for id, s := range f.jobs {
		userID := id
		jobs = append(jobs, scheduler.Job{Name: "user", UserID: &userID, Schedule: s})
	}
	return jobs
}

func (f *fakeScheduler) RunNow() { f.runs++ }

type apiFixture struct {
	router http.Handler
	remote *storagetest.Memory
	creds  *credentials.Store
	books  *books.Repository
	queue  *fakeQueue
	sched  *fakeScheduler
	store  *settingsstore.SettingsStore
	userID uint
}

func setupAPI(t *testing.T, mutate ...func(*RouterConfig)) *apiFixture {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enc, err := crypto.NewEncryptorFromSecret("api-test")
	require.NoError(t, err)

	userRepo := users.NewRepository(db.DB)
	user, err := userRepo.EnsureUser(context.Background(), "koreader_user")
	require.NoError(t, err)

	f := &apiFixture{
		remote: storagetest.NewMemory(),
		creds:  credentials.New(db.DB, enc),
		books:  books.NewRepository(db.DB),
		queue:  &fakeQueue{},
		sched:  &fakeScheduler{jobs: map[uint]string{}},
		store:  settingsstore.New(settings.NewRepository(db.DB), "@hourly"),
		userID: user.ID,
	}

	svc := statsync.NewService(statsync.Deps{
		Credentials: f.creds,
		Runs:        syncruns.NewRepository(db.DB),
		Library:     f.books,
		NewClient:   func(credentials.Credentials) storage.Client { return f.remote },
	}, statsync.Config{TempDir: t.TempDir()})

	limiter := ratelimit.PerMinute(100)
	t.Cleanup(limiter.Stop)

	cfg := RouterConfig{
		Sync:        svc,
		Remote:      svc,
		Credentials: f.creds,
		Highlights:  f.books,
		Health:      NewHealthController("test", map[string]HealthCheck{"database": DatabaseCheck(db.DB)}),
		Tasks:       f.queue,
		TaskState:   f.queue,
		Scheduler:   f.sched,
		Schedules:   f.store,
		Limiter:     limiter,
		Identity: IdentityConfig{
			Header:        "X-Remote-User",
			Users:         userRepo,
			DefaultUserID: user.ID,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.router = NewRouter(cfg)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) configure(t *testing.T) {
	t.Helper()
	w := f.do(t, "PUT", "/api/webdav/config", map[string]any{
		"url":      "https://dav.example.com",
		"login":    "reader",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (f *apiFixture) publish(t *testing.T, fx koreadertest.Fixture) {
	t.Helper()
	data, err := os.ReadFile(koreadertest.Write(t, fx))
	require.NoError(t, err)
	f.remote.Put("/koreader/statistics.sqlite3", data)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAPI_SyncFlow(t *testing.T) {
	f := setupAPI(t)
	f.configure(t)
	f.publish(t, koreadertest.TwoBooks())

	w := f.do(t, "POST", "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[statsync.Result](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.BooksSynced)
	assert.Equal(t, 3, res.SessionsSynced)
	assert.Equal(t, "/koreader/statistics.sqlite3", res.RemotePathUsed)

	w = f.do(t, "GET", "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[statsync.Status](t, w)
	assert.EqualValues(t, 2, status.TotalBooks)
	assert.EqualValues(t, 3, status.TotalSessions)
	assert.True(t, status.HasWebDAVConfig)
	require.NotNil(t, status.LastSync)

	w = f.do(t, "GET", "/api/sync/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Runs []entities.SyncRun `json:"runs"`
	}](t, w)
	require.Len(t, history.Runs, 1)
	assert.Equal(t, entities.SyncTriggerManual, history.Runs[0].Trigger)
}

func TestAPI_SyncFailures(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "POST", "/api/sync", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, statsync.CodeNotConfigured, decode[statsync.Result](t, w).Code)

	f.configure(t)
	w = f.do(t, "POST", "/api/sync", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	res := decode[statsync.Result](t, w)
	assert.False(t, res.Success)
	assert.Zero(t, res.BooksSynced)

	w = f.do(t, "POST", "/api/sync", map[string]string{"remote_path": "/elsewhere/stats.sqlite3"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_SyncRateLimited(t *testing.T) {
	f := setupAPI(t, func(cfg *RouterConfig) {
		limiter := ratelimit.PerMinute(1)
		t.Cleanup(limiter.Stop)
		cfg.Limiter = limiter
	})

	f.do(t, "POST", "/api/sync", nil)
	w := f.do(t, "POST", "/api/sync", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode[ErrorResponse](t, w).Code)
}

func TestAPI_SyncAsync(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "POST", "/api/sync/async", map[string]string{"remote_path": "/x.sqlite3"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, f.queue.queued, 1)
	assert.Equal(t, tasks.SyncUserTask{UserID: f.userID, RemotePath: "/x.sqlite3"}, f.queue.queued[0])

	w = f.do(t, "GET", "/api/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running"`)

	w = f.do(t, "GET", "/api/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.queue.err = errors.New("queue full")
	w = f.do(t, "POST", "/api/sync/async", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPI_SyncAsyncWithoutQueue(t *testing.T) {
	f := setupAPI(t, func(cfg *RouterConfig) {
		cfg.Tasks = nil
		cfg.TaskState = nil
	})

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, "POST", "/api/sync/async", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/tasks/task-1", nil).Code)
}

func TestAPI_WebDAVConfig(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "GET", "/api/webdav/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[WebDAVConfigResponse](t, w).Configured)

	w = f.do(t, "PUT", "/api/webdav/config", map[string]any{"url": "dav.example.com", "login": "a", "password": "b"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.configure(t)

	w = f.do(t, "GET", "/api/webdav/config", nil)
	cfg := decode[WebDAVConfigResponse](t, w)
	assert.True(t, cfg.Configured)
	assert.Equal(t, "https://dav.example.com", cfg.URL)
	assert.Equal(t, "reader", cfg.Login)
	assert.True(t, cfg.HasPassword)
	assert.NotContains(t, w.Body.String(), "s3cret")

	w = f.do(t, "DELETE", "/api/webdav/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[WebDAVConfigResponse](t, f.do(t, "GET", "/api/webdav/config", nil)).Configured)
}

func TestAPI_WebDAVTestAndFiles(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "POST", "/api/webdav/test", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	f.configure(t)
	f.remote.Put("/koreader/statistics.sqlite3", []byte("x"))
	f.remote.Put("/koreader/history/a.lua", []byte("y"))

	w = f.do(t, "POST", "/api/webdav/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = f.do(t, "GET", "/api/webdav/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[struct {
		Files []storage.FileInfo `json:"files"`
	}](t, w)
	require.Len(t, files.Files, 2)
	assert.Equal(t, "history", files.Files[0].Name)

	w = f.do(t, "GET", "/api/webdav/files?path=/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, "GET", "/api/webdav/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	search := decode[statsync.SnapshotSearch](t, w)
	require.Len(t, search.Files, 1)
	require.NotNil(t, search.Latest)
	assert.Equal(t, "/koreader/statistics.sqlite3", search.Latest.Path)

	f.remote.Errors["/"] = errors.New("401 unauthorized")
	w = f.do(t, "POST", "/api/webdav/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestAPI_HighlightsSurviveSync(t *testing.T) {
	f := setupAPI(t)
	f.configure(t)
	f.publish(t, koreadertest.TwoBooks())
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/sync", nil).Code)

	page := 12
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	body := map[string]any{
		"book": map[string]string{"title": "Dune", "author": "Frank Herbert", "md5": "h1"},
		"highlights": []map[string]any{
			{"text": "Fear is the mind-killer.", "page": page, "created_time": created},
			{"text": "Fear is the mind-killer.", "page": page, "created_time": created},
			{"text": ""},
		},
	}
	w := f.do(t, "POST", "/api/highlights/import", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"imported":1`)

	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/sync", nil).Code)

	w = f.do(t, "GET", "/api/highlights", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Highlights []entities.Highlight `json:"highlights"`
	}](t, w)
	require.Len(t, list.Highlights, 1)
	require.NotNil(t, list.Highlights[0].BookID)

	dune, err := f.books.FindBookByContentHash(context.Background(), f.userID, "h1")
	require.NoError(t, err)
	assert.Equal(t, dune.ID, *list.Highlights[0].BookID, "highlight follows the recreated book")

	w = f.do(t, "POST", "/api/highlights/import", map[string]any{"highlights": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Schedule(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "PUT", "/api/sync/schedule", map[string]string{"schedule": "@every 30m"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "@every 30m", f.sched.jobs[f.userID])

	w = f.do(t, "PUT", "/api/sync/schedule", map[string]string{"schedule": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "GET", "/api/scheduler/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sync_all_users")

	assert.Equal(t, http.StatusAccepted, f.do(t, "POST", "/api/scheduler/run", nil).Code)
	assert.Equal(t, 1, f.sched.runs)

	assert.Equal(t, http.StatusOK, f.do(t, "DELETE", "/api/sync/schedule", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", "/api/sync/schedule", nil).Code)
}

func TestAPI_GetSchedule(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "GET", "/api/sync/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info settingsstore.ScheduleInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, settingsstore.ScheduleInfo{Schedule: "@hourly", Source: "default"}, info)

	require.NoError(t, f.store.SetSyncSchedule(context.Background(), f.userID, "0 6 * * *"))

	w = f.do(t, "GET", "/api/sync/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, settingsstore.ScheduleInfo{Schedule: "0 6 * * *", Source: "user"}, info)
}

func TestAPI_Identity(t *testing.T) {
	f := setupAPI(t, func(cfg *RouterConfig) {
		cfg.Identity.DefaultUserID = 0
	})

	w := f.do(t, "GET", "/api/sync/status", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is public")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = f.do(t, "GET", "/api/sync/status", nil, "X-Remote-User", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[statsync.Status](t, w).HasWebDAVConfig)

	// alice's config is separate from the default user's
	w = f.do(t, "PUT", "/api/webdav/config", map[string]any{
		"url": "https://alice.example.com", "login": "alice", "password": "pw",
	}, "X-Remote-User", "alice")
	require.Equal(t, http.StatusOK, w.Code)

	has, err := f.creds.Has(context.Background(), f.userID)
	require.NoError(t, err)
	assert.False(t, has)
}
