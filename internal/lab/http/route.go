package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers lab registry routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/labs")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)         // List labs
		group.GET("/:id", h.Get)      // Get lab details
		group.POST("", h.Create)      // Register lab (admin)
		group.PATCH("/:id", h.Update) // Change capacity or status (admin)
	}
}
