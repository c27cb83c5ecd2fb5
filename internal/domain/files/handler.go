package files

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mediastore/internal/middleware"
	"mediastore/internal/pkg/response"
	"mediastore/internal/pkg/storagekey"
	"mediastore/internal/storage"
)

// maxDirectUploadSize caps synchronous uploads; anything larger goes through
// a chunked upload session or a presigned URL.
const maxDirectUploadSize = 32 * 1024 * 1024

// Handler is the per-file surface of the storage gateway: presigned URLs,
// direct upload for small files, stat, download streaming and deletion.
// Every operation resolves the caller's organization to its storage backend.
type Handler struct {
	gateway *storage.Gateway
}

func NewHandler(gateway *storage.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// PresignUploadInput names the file to be uploaded; the key is derived
// server-side so clients can never choose their own.
type PresignUploadInput struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	TTLSeconds  int    `json:"ttl_seconds"`
}

// PresignDownloadInput asks for temporary read access to an existing key.
type PresignDownloadInput struct {
	Key        string `json:"key" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// PresignUpload derives a fresh storage key and returns a short-lived URL the
// client PUTs the file to directly, bypassing this server for the bytes.
func (h *Handler) PresignUpload(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	var in PresignUploadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	key, err := storagekey.ForUpload(orgID, in.FileName, middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_FILE_NAME", err.Error())
		return
	}

	url, err := h.gateway.PresignUpload(c.Request.Context(), orgID, key, in.ContentType, ttlFromSeconds(in.TTLSeconds, storage.DefaultUploadTTL))
	if err != nil {
		h.writeBackendError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"key": key, "url": url})
}

// PresignDownload returns a short-lived read URL for a key the organization
// owns.
func (h *Handler) PresignDownload(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	var in PresignDownloadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if !storagekey.BelongsTo(in.Key, orgID) {
		response.Error(c, http.StatusForbidden, "FOREIGN_KEY", "key belongs to another organization")
		return
	}

	url, err := h.gateway.PresignDownload(c.Request.Context(), orgID, in.Key, ttlFromSeconds(in.TTLSeconds, storage.DefaultDownloadTTL))
	if err != nil {
		h.writeBackendError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url})
}

// Upload accepts a small file as multipart form data and writes it through
// the gateway synchronously.
func (h *Handler) Upload(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "NO_FILE", "no file provided")
		return
	}
	if fileHeader.Size > maxDirectUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "use a chunked upload session for large files")
		return
	}

	key, err := storagekey.ForUpload(orgID, fileHeader.Filename, middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_FILE_NAME", err.Error())
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "failed to read uploaded file")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "failed to read uploaded file")
		return
	}

	result, err := h.gateway.Upload(c.Request.Context(), orgID, key, data, fileHeader.Header.Get("Content-Type"), map[string]string{
		"original-name": fileHeader.Filename,
		"uploader-id":   strconv.FormatInt(middleware.UserID(c), 10),
	})
	if err != nil {
		h.writeBackendError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// Stat reports existence and metadata without fetching the object.
func (h *Handler) Stat(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}
	key := c.Query("key")
	if key == "" {
		response.Error(c, http.StatusBadRequest, "MISSING_KEY", "key query parameter is required")
		return
	}
	if !storagekey.BelongsTo(key, orgID) {
		response.Error(c, http.StatusForbidden, "FOREIGN_KEY", "key belongs to another organization")
		return
	}

	stat, err := h.gateway.Stat(c.Request.Context(), orgID, key)
	if err != nil {
		h.writeBackendError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stat)
}

// Download streams the object body through the server. Intended for backends
// without presigning or for internal consumers; browsers should use
// PresignDownload.
func (h *Handler) Download(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}
	key := c.Query("key")
	if key == "" {
		response.Error(c, http.StatusBadRequest, "MISSING_KEY", "key query parameter is required")
		return
	}
	if !storagekey.BelongsTo(key, orgID) {
		response.Error(c, http.StatusForbidden, "FOREIGN_KEY", "key belongs to another organization")
		return
	}

	result, err := h.gateway.Download(c.Request.Context(), orgID, key)
	if err != nil {
		h.writeBackendError(c, err)
		return
	}
	defer result.Body.Close()

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, result.ContentLength, contentType, result.Body, nil)
}

// Delete removes the object. Deletion is best-effort and idempotent: a
// missing object still reports deleted.
func (h *Handler) Delete(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}
	key := c.Query("key")
	if key == "" {
		response.Error(c, http.StatusBadRequest, "MISSING_KEY", "key query parameter is required")
		return
	}
	if !storagekey.BelongsTo(key, orgID) {
		response.Error(c, http.StatusForbidden, "FOREIGN_KEY", "key belongs to another organization")
		return
	}

	deleted := h.gateway.Delete(c.Request.Context(), orgID, key)
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) writeBackendError(c *gin.Context, err error) {
	if storage.IsNotFound(err) {
		response.Error(c, http.StatusNotFound, "OBJECT_NOT_FOUND", "object does not exist")
		return
	}
	var be *storage.BackendError
	if errors.As(err, &be) && be.Timeout {
		response.Error(c, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", "storage backend timed out")
		return
	}
	response.Error(c, http.StatusBadGateway, "STORAGE_BACKEND_ERROR", "storage backend request failed")
}

func ttlFromSeconds(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
