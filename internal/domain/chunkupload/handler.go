package chunkupload

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mediastore/internal/middleware"
	"mediastore/internal/pkg/response"
	"mediastore/internal/pkg/storagekey"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateInput is the request body for opening a chunked upload session.
type CreateInput struct {
	FileName string `json:"file_name" binding:"required"`
	FileSize int64  `json:"file_size" binding:"required"`
	MimeType string `json:"mime_type"`
}

// ConfirmInput carries the integrity tag the backend returned for a chunk.
type ConfirmInput struct {
	ETag string `json:"etag" binding:"required"`
}

// Create opens a session for a large file and returns the chunk plan.
func (h *Handler) Create(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	session, err := h.service.Initialize(c.Request.Context(), orgID, middleware.UserID(c), in.FileName, in.FileSize, in.MimeType)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFileSize):
			response.Error(c, http.StatusBadRequest, "INVALID_FILE_SIZE", err.Error())
		case errors.Is(err, ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
		case errors.Is(err, storagekey.ErrEmptyFileName), errors.Is(err, storagekey.ErrUnsafeFileName):
			response.Error(c, http.StatusBadRequest, "INVALID_FILE_NAME", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to create upload session")
		}
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// Get returns the session with its per-chunk confirmation map.
func (h *Handler) Get(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	status, err := h.service.Status(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// ChunkURL issues a presigned upload URL for one pending chunk.
func (h *Handler) ChunkURL(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "CHUNK_INDEX_INVALID", "chunk index must be an integer")
		return
	}

	url, err := h.service.ChunkUploadURL(c.Request.Context(), orgID, c.Param("id"), index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url, "index": index})
}

// Confirm records a chunk's integrity tag; the final confirmation returns the
// completed upload.
func (h *Handler) Confirm(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "CHUNK_INDEX_INVALID", "chunk index must be an integer")
		return
	}

	var in ConfirmInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := h.service.ConfirmChunk(c.Request.Context(), orgID, c.Param("id"), index, in.ETag)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Cancel terminates the session and reclaims the backend upload.
func (h *Handler) Cancel(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), orgID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

// writeError maps coordinator errors onto the response envelope. Expiry is
// checked before the broader not-active match it wraps.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, ErrSessionExpired):
		response.Error(c, http.StatusGone, "SESSION_EXPIRED", err.Error())
	case errors.Is(err, ErrSessionNotActive):
		response.Error(c, http.StatusConflict, "SESSION_NOT_ACTIVE", err.Error())
	case errors.Is(err, ErrChunkIndexInvalid):
		response.Error(c, http.StatusBadRequest, "CHUNK_INDEX_INVALID", err.Error())
	case errors.Is(err, ErrChunkAlreadyConfirmed):
		response.Error(c, http.StatusConflict, "CHUNK_ALREADY_CONFIRMED", err.Error())
	case errors.Is(err, ErrChunkConflict):
		response.Error(c, http.StatusConflict, "CHUNK_CONFLICT", err.Error())
	case errors.Is(err, ErrIntegrityTagRequired):
		response.Error(c, http.StatusBadRequest, "INTEGRITY_TAG_REQUIRED", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "upload session operation failed")
	}
}
