package chunkupload

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the chunked upload session routes under the
// protected group. The progress WebSocket authenticates via query token, so
// it is registered on the public group separately.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	sessions := r.Group("/uploads/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.GET("/:id/chunks/:index/url", h.ChunkURL)
		sessions.POST("/:id/chunks/:index/confirm", h.Confirm)
		sessions.DELETE("/:id", h.Cancel)
	}
}

// RegisterWSRoutes registers the progress feed outside the header-based auth
// middleware.
func RegisterWSRoutes(r *gin.RouterGroup, h *WSHandler) {
	r.GET("/uploads/sessions/:id/progress", h.Progress)
}
