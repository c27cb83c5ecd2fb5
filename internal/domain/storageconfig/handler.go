package storageconfig

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediastore/internal/middleware"
	"mediastore/internal/pkg/response"
)

// Handler exposes the tenant-administrator storage configuration surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetActive returns the organization's active custom config, or 404 when the
// org runs on the platform default. Credentials are never included.
func (h *Handler) GetActive(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	cfg, err := h.service.Active(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			response.Error(c, http.StatusNotFound, "NO_CUSTOM_CONFIG", "organization uses the platform default storage")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load storage config")
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// History returns current and historical config rows for audit.
func (h *Handler) History(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	rows, err := h.service.History(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to load storage config history")
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// Activate validates and persists a new active configuration. Validation
// failures carry the backend's literal detail so the administrator can
// correct credentials.
func (h *Handler) Activate(c *gin.Context) {
	orgID := middleware.MustOrgID(c)
	if orgID == 0 {
		return
	}

	var in ActivateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	cfg, err := h.service.Activate(c.Request.Context(), orgID, in)
	if err != nil {
		if errors.Is(err, ErrConfigurationInvalid) {
			response.Error(c, http.StatusUnprocessableEntity, "CONFIGURATION_INVALID", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "failed to activate storage config")
		return
	}
	response.Success(c, http.StatusCreated, cfg)
}

// Test runs the connectivity probe without persisting anything.
func (h *Handler) Test(c *gin.Context) {
	var in ActivateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.service.Test(c.Request.Context(), in); err != nil {
		response.Success(c, http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"success": true})
}
