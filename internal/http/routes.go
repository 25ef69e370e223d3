package http

import "github.com/gin-gonic/gin"

// Register mounts the REST routes.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/logs", h.GetLogs)

	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DestroySession)
		sessions.POST("/:id/input", h.SendInput)
		sessions.POST("/:id/signal", h.SendSignal)
		sessions.POST("/:id/guidance", h.ApplyGuidance)
		sessions.GET("/:id/output", h.GetOutput)
		sessions.GET("/:id/text", h.GetText)
		sessions.GET("/:id/logs", h.GetSessionLogs)
	}
}
