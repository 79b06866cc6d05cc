package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthCheck reports the state of one component. An error marks the whole
// service unhealthy.
type HealthCheck func(ctx context.Context) (string, error)

// SchedulerState reports whether periodic sync is active.
type SchedulerState interface {
	IsRunning() bool
}

// Pinger is anything backed by a connection that can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the library database.
func DatabaseCheck(db *gorm.DB) HealthCheck {
	return func(ctx context.Context) (string, error) {
		sqlDB, err := db.DB()
		if err != nil {
			return "", err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return "", err
		}
		return "ok", nil
	}
}

// SchedulerCheck reports whether periodic sync is running. A stopped
// scheduler is a configuration choice, not a failure.
func SchedulerCheck(s SchedulerState) HealthCheck {
	return func(context.Context) (string, error) {
		if s.IsRunning() {
			return "running", nil
		}
		return "stopped", nil
	}
}

// PingCheck wraps a Pinger such as the task queue.
func PingCheck(p Pinger) HealthCheck {
	return func(ctx context.Context) (string, error) {
		if err := p.Ping(ctx); err != nil {
			return "", err
		}
		return "ok", nil
	}
}

type HealthController struct {
	checks  map[string]HealthCheck
	version string
}

func NewHealthController(version string, checks map[string]HealthCheck) *HealthController {
	return &HealthController{
		checks:  checks,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	status := "healthy"
	for name, check := range h.checks {
		state, err := check(ctx)
		if err != nil {
			results[name] = "error: " + err.Error()
			status = "unhealthy"
			continue
		}
		results[name] = state
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  results,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
