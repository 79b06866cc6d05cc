package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(cfg.Logger))
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(IdentityMiddleware(cfg.Identity))

	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Status)
	}

	syncController := NewSyncController(cfg.Sync, cfg.Tasks, cfg.Limiter, cfg.Scheduler, cfg.Schedules)
	webdavController := NewWebDAVController(cfg.Credentials, cfg.Remote)
	highlightsController := NewHighlightsController(cfg.Highlights)

	api := router.Group("/api")
	{
		api.POST("/sync", syncController.Sync)
		api.POST("/sync/async", syncController.SyncAsync)
		api.GET("/sync/status", syncController.Status)
		api.GET("/sync/history", syncController.History)
		api.GET("/sync/schedule", syncController.GetSchedule)
		api.PUT("/sync/schedule", syncController.SetSchedule)
		api.DELETE("/sync/schedule", syncController.DeleteSchedule)

		api.GET("/scheduler/jobs", syncController.Jobs)
		api.POST("/scheduler/run", syncController.RunScheduler)

		api.GET("/webdav/config", webdavController.GetConfig)
		api.PUT("/webdav/config", webdavController.SaveConfig)
		api.DELETE("/webdav/config", webdavController.DeleteConfig)
		api.POST("/webdav/test", webdavController.Test)
		api.GET("/webdav/files", webdavController.ListFiles)
		api.GET("/webdav/snapshots", webdavController.FindSnapshots)

		api.GET("/highlights", highlightsController.List)
		api.POST("/highlights/import", highlightsController.Import)

		if cfg.TaskState != nil {
			tasksController := NewTasksController(cfg.TaskState)
			api.GET("/tasks/:id", tasksController.GetTaskStatus)
		}
	}

	return router
}
