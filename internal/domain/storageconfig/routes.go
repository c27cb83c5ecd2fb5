package storageconfig

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the storage configuration routes under the
// protected group. All routes require an authenticated organization.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	cfg := r.Group("/storage/config")
	{
		cfg.GET("", h.GetActive)
		cfg.GET("/history", h.History)
		cfg.PUT("", h.Activate)
		cfg.POST("/test", h.Test)
	}
}
