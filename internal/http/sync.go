package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/readstats/internal/entities"
	"github.com/mrlokans/readstats/internal/scheduler"
	"github.com/mrlokans/readstats/internal/settingsstore"
	"github.com/mrlokans/readstats/internal/statsync"
	"github.com/mrlokans/readstats/internal/tasks"
)

// SyncService is what SyncController needs from statsync.Service.
type SyncService interface {
	Sync(ctx context.Context, userID uint, opts statsync.SyncOptions) statsync.Result
	Status(ctx context.Context, userID uint) (*statsync.Status, error)
	History(ctx context.Context, userID uint, limit int) ([]entities.SyncRun, error)
}

// TaskEnqueuer adds background tasks.
type TaskEnqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

// TriggerLimiter throttles manual sync triggers per user.
type TriggerLimiter interface {
	Allow(userID uint) bool
}

// UserScheduler manages a user's own sync schedule.
type UserScheduler interface {
	AddUserJob(userID uint, schedule string) error
	RemoveUserJob(userID uint) bool
	Jobs() []scheduler.Job
	RunNow()
}

// ScheduleReader reports which schedule applies to a user.
type ScheduleReader interface {
	GetSyncScheduleInfo(ctx context.Context, userID uint) (settingsstore.ScheduleInfo, error)
}

// SyncController handles library sync endpoints.
type SyncController struct {
	service   SyncService
	tasks     TaskEnqueuer
	limiter   TriggerLimiter
	scheduler UserScheduler
	schedules ScheduleReader
}

func NewSyncController(service SyncService, tasks TaskEnqueuer, limiter TriggerLimiter, sched UserScheduler, schedules ScheduleReader) *SyncController {
	return &SyncController{service: service, tasks: tasks, limiter: limiter, scheduler: sched, schedules: schedules}
}

// SyncRequest optionally names the statistics file to use.
type SyncRequest struct {
	RemotePath string `json:"remote_path" form:"remote_path"`
}

func (sc *SyncController) bindRequest(c *gin.Context) (SyncRequest, bool) {
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return req, false
		}
	}
	if req.RemotePath == "" {
		req.RemotePath = c.Query("remote_path")
	}
	return req, true
}

func (sc *SyncController) allow(c *gin.Context, userID uint) bool {
	if sc.limiter == nil || sc.limiter.Allow(userID) {
		return true
	}
	respondError(c, http.StatusTooManyRequests, "too many sync requests, try again later", "rate_limited")
	return false
}

// Sync handles POST /api/sync
// Runs a sync for the current user and returns its result.
func (sc *SyncController) Sync(c *gin.Context) {
	userID := GetUserID(c)
	req, ok := sc.bindRequest(c)
	if !ok || !sc.allow(c, userID) {
		return
	}

	res := sc.service.Sync(c.Request.Context(), userID, statsync.SyncOptions{
		RemotePath: req.RemotePath,
		Trigger:    entities.SyncTriggerManual,
	})
	c.JSON(syncStatusCode(res), res)
}

func syncStatusCode(res statsync.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case statsync.CodeNotConfigured:
		return http.StatusPreconditionFailed
	case statsync.CodeNotFound:
		return http.StatusNotFound
	case statsync.CodeBusy:
		return http.StatusConflict
	case statsync.CodeRemoteError, statsync.CodeDownloadFailed:
		return http.StatusBadGateway
	case statsync.CodeInvalidFile:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// SyncAsync handles POST /api/sync/async
// Enqueues a background sync and returns the task ID.
func (sc *SyncController) SyncAsync(c *gin.Context) {
	if sc.tasks == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is disabled", "tasks_disabled")
		return
	}

	userID := GetUserID(c)
	req, ok := sc.bindRequest(c)
	if !ok || !sc.allow(c, userID) {
		return
	}

	id, err := sc.tasks.Enqueue(tasks.SyncUserTask{UserID: userID, RemotePath: req.RemotePath})
	if err != nil {
		respondInternalError(c, err, "enqueue sync")
		return
	}
	respondAccepted(c, "sync enqueued", gin.H{"task_id": id})
}

// Status handles GET /api/sync/status
func (sc *SyncController) Status(c *gin.Context) {
	status, err := sc.service.Status(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "sync status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// History handles GET /api/sync/history?limit=N
func (sc *SyncController) History(c *gin.Context) {
	limit := parseLimit(c, "limit", 20, 100)
	runs, err := sc.service.History(c.Request.Context(), GetUserID(c), limit)
	if err != nil {
		respondInternalError(c, err, "sync history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ScheduleRequest sets the current user's own sync schedule.
type ScheduleRequest struct {
	Schedule string `json:"schedule" binding:"required"`
}

// GetSchedule handles GET /api/sync/schedule
func (sc *SyncController) GetSchedule(c *gin.Context) {
	if sc.schedules == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduler is disabled", "scheduler_disabled")
		return
	}
	info, err := sc.schedules.GetSyncScheduleInfo(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "get schedule")
		return
	}
	c.JSON(http.StatusOK, info)
}

// SetSchedule handles PUT /api/sync/schedule
func (sc *SyncController) SetSchedule(c *gin.Context) {
	if sc.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduler is disabled", "scheduler_disabled")
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "schedule is required")
		return
	}
	if err := sc.scheduler.AddUserJob(GetUserID(c), req.Schedule); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	respondSuccess(c, "schedule updated")
}

// DeleteSchedule handles DELETE /api/sync/schedule
func (sc *SyncController) DeleteSchedule(c *gin.Context) {
	if sc.scheduler == nil || !sc.scheduler.RemoveUserJob(GetUserID(c)) {
		respondNotFound(c, "schedule")
		return
	}
	respondSuccess(c, "schedule removed")
}

// Jobs handles GET /api/scheduler/jobs
func (sc *SyncController) Jobs(c *gin.Context) {
	if sc.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.Job{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": sc.scheduler.Jobs()})
}

// RunScheduler handles POST /api/scheduler/run
// Starts a pass over all users in the background.
func (sc *SyncController) RunScheduler(c *gin.Context) {
	if sc.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduler is disabled", "scheduler_disabled")
		return
	}
	sc.scheduler.RunNow()
	respondAccepted(c, "scheduled sync started", nil)
}
