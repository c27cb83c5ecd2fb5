package files

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the file routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	g := r.Group("/files")
	{
		g.POST("/presign-upload", h.PresignUpload)
		g.POST("/presign-download", h.PresignDownload)
		g.POST("/upload", h.Upload)
		g.GET("/stat", h.Stat)
		g.GET("/download", h.Download)
		g.DELETE("", h.Delete)
	}
}
