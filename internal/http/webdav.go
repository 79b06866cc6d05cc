package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstats/internal/credentials"
	"github.com/mrlokans/readstats/internal/statsync"
	"github.com/mrlokans/readstats/internal/storage"
)

// CredentialStore persists WebDAV credentials.
type CredentialStore interface {
	Save(ctx context.Context, userID uint, creds credentials.Credentials) error
	Get(ctx context.Context, userID uint) (*credentials.Credentials, error)
	Delete(ctx context.Context, userID uint) error
}

// RemoteBrowser checks and lists the remote store.
type RemoteBrowser interface {
	TestCredentials(ctx context.Context, creds credentials.Credentials) error
	TestConnection(ctx context.Context, userID uint) error
	ListRemote(ctx context.Context, userID uint, dir string) ([]storage.FileInfo, error)
	FindSnapshots(ctx context.Context, userID uint, dir string) (*statsync.SnapshotSearch, error)
}

// WebDAVController manages a user's WebDAV connection.
type WebDAVController struct {
	store  CredentialStore
	remote RemoteBrowser
}

func NewWebDAVController(store CredentialStore, remote RemoteBrowser) *WebDAVController {
	return &WebDAVController{store: store, remote: remote}
}

// WebDAVConfigRequest is the body of PUT /api/webdav/config.
type WebDAVConfigRequest struct {
	URL      string `json:"url"`
	Login    string `json:"login"`
	Password string `json:"password"`
	BasePath string `json:"base_path"`
	// Test checks the connection before saving.
	Test bool `json:"test"`
}

func (r WebDAVConfigRequest) credentials() credentials.Credentials {
	return credentials.Credentials{
		URL:      strings.TrimSpace(r.URL),
		Login:    strings.TrimSpace(r.Login),
		Password: r.Password,
		BasePath: strings.TrimSpace(r.BasePath),
	}
}

// WebDAVConfigResponse never includes the password.
type WebDAVConfigResponse struct {
	Configured  bool   `json:"configured"`
	URL         string `json:"url,omitempty"`
	Login       string `json:"login,omitempty"`
	BasePath    string `json:"base_path,omitempty"`
	HasPassword bool   `json:"has_password"`
}

// GetConfig handles GET /api/webdav/config
func (wc *WebDAVController) GetConfig(c *gin.Context) {
	creds, err := wc.store.Get(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "get webdav config")
		return
	}
	if creds == nil {
		c.JSON(http.StatusOK, WebDAVConfigResponse{})
		return
	}
	c.JSON(http.StatusOK, WebDAVConfigResponse{
		Configured:  true,
		URL:         creds.URL,
		Login:       creds.Login,
		BasePath:    creds.BasePath,
		HasPassword: creds.Password != "",
	})
}

// SaveConfig handles PUT /api/webdav/config
func (wc *WebDAVController) SaveConfig(c *gin.Context) {
	var req WebDAVConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	creds := req.credentials()
	if err := creds.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if req.Test {
		if err := wc.remote.TestCredentials(c.Request.Context(), creds); err != nil {
			respondError(c, http.StatusBadGateway, err.Error(), "connection_failed")
			return
		}
	}

	if err := wc.store.Save(c.Request.Context(), GetUserID(c), creds); err != nil {
		respondInternalError(c, err, "save webdav config")
		return
	}
	respondSuccess(c, "webdav configuration saved")
}

// DeleteConfig handles DELETE /api/webdav/config
func (wc *WebDAVController) DeleteConfig(c *gin.Context) {
	if err := wc.store.Delete(c.Request.Context(), GetUserID(c)); err != nil {
		respondInternalError(c, err, "delete webdav config")
		return
	}
	respondSuccess(c, "webdav configuration removed")
}

// Test handles POST /api/webdav/test
// Tests the credentials in the body, or the saved ones when the body is empty.
func (wc *WebDAVController) Test(c *gin.Context) {
	ctx := c.Request.Context()

	var err error
	if c.Request.ContentLength > 0 {
		var req WebDAVConfigRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		err = wc.remote.TestCredentials(ctx, req.credentials())
	} else {
		err = wc.remote.TestConnection(ctx, GetUserID(c))
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "connection successful"})
	case errors.Is(err, statsync.ErrNoCredentials):
		respondError(c, http.StatusPreconditionFailed, err.Error(), statsync.CodeNotConfigured)
	case errors.Is(err, credentials.ErrInvalidCredentials):
		respondBadRequest(c, err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
	}
}

// ListFiles handles GET /api/webdav/files?path=/dir
func (wc *WebDAVController) ListFiles(c *gin.Context) {
	entries, err := wc.remote.ListRemote(c.Request.Context(), GetUserID(c), c.Query("path"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"files": entries})
	case errors.Is(err, statsync.ErrNoCredentials):
		respondError(c, http.StatusPreconditionFailed, err.Error(), statsync.CodeNotConfigured)
	case errors.Is(err, storage.ErrNotFound):
		respondNotFound(c, "directory")
	default:
		respondError(c, http.StatusBadGateway, err.Error(), statsync.CodeRemoteError)
	}
}

// FindSnapshots handles GET /api/webdav/snapshots?path=/dir
func (wc *WebDAVController) FindSnapshots(c *gin.Context) {
	search, err := wc.remote.FindSnapshots(c.Request.Context(), GetUserID(c), c.Query("path"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, search)
	case errors.Is(err, statsync.ErrNoCredentials):
		respondError(c, http.StatusPreconditionFailed, err.Error(), statsync.CodeNotConfigured)
	case errors.Is(err, storage.ErrNotFound):
		respondNotFound(c, "directory")
	default:
		respondError(c, http.StatusBadGateway, err.Error(), statsync.CodeRemoteError)
	}
}
