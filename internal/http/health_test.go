package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readstats/internal/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubScheduler struct{ running bool }

func (s stubScheduler) IsRunning() bool { return s.running }

func setupHealthTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "health.db"), logger.Silent)
	require.NoError(t, err)
	return db
}

func getHealth(t *testing.T, controller *HealthController) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	router := gin.New()
	router.GET("/health", controller.Status)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when every component is up", func(t *testing.T) {
		db := setupHealthTestDB(t)
		defer db.Close()

		controller := NewHealthController("1.0.0", map[string]HealthCheck{
			"database":  DatabaseCheck(db.DB),
			"scheduler": SchedulerCheck(stubScheduler{running: true}),
			"tasks":     PingCheck(stubPinger{}),
		})
		w, response := getHealth(t, controller)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "running", response.Checks["scheduler"])
		assert.Equal(t, "ok", response.Checks["tasks"])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("stopped scheduler is still healthy", func(t *testing.T) {
		w, response := getHealth(t, NewHealthController("1.0.0", map[string]HealthCheck{
			"scheduler": SchedulerCheck(stubScheduler{}),
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "stopped", response.Checks["scheduler"])
	})

	t.Run("returns unhealthy when database connection is closed", func(t *testing.T) {
		db := setupHealthTestDB(t)
		require.NoError(t, db.Close())

		w, response := getHealth(t, NewHealthController("1.0.0", map[string]HealthCheck{
			"database": DatabaseCheck(db.DB),
		}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Contains(t, response.Checks["database"], "error")
	})

	t.Run("failing task queue is reported", func(t *testing.T) {
		w, response := getHealth(t, NewHealthController("1.0.0", map[string]HealthCheck{
			"tasks": PingCheck(stubPinger{err: errors.New("disk I/O error")}),
		}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "error: disk I/O error", response.Checks["tasks"])
	})
}
