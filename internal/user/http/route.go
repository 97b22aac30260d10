package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers account and session routes.
func RegisterRoutes(g *gin.RouterGroup, h *UserHandler, authMiddleware gin.HandlerFunc) {
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	users := g.Group("/users")
	users.Use(authMiddleware)
	{
		users.GET("/me", h.Me)
		users.PATCH("/:id/role", h.SetRole)
	}
}
