package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediastore/internal/pkg/response"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

// List returns the provider catalogue for configuration UIs.
func (h *Handler) List(c *gin.Context) {
	response.Success(c, http.StatusOK, List())
}
