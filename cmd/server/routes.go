package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/handlers"
	"github.com/huangang/taskforge/internal/middleware"
	"github.com/huangang/taskforge/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(
		middleware.RequestID(),
		logger.GinLogger(),
		logger.GinRecovery(),
		middleware.Metrics(svc.metrics),
		middleware.CORS(svc.cfg.Server.CORSOrigins...),
	)
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.metrics))

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", svc.authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.PUT("/projects/:id", svc.projectHandler.Update)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.GET("/projects/:id/permissions", svc.projectHandler.Permissions)
			protected.GET("/projects/:id/analytics", svc.projectHandler.Analytics)

			// Team (mutations are owner-only)
			protected.GET("/projects/:id/members", svc.memberHandler.List)
			protected.POST("/projects/:id/members", svc.memberHandler.Add)
			protected.PUT("/projects/:id/members/:username", svc.memberHandler.UpdateRole)
			protected.DELETE("/projects/:id/members/:username", svc.memberHandler.Remove)

			// Tasks
			protected.GET("/projects/:id/tasks", svc.taskHandler.List)
			protected.POST("/projects/:id/tasks", svc.taskHandler.Create)
			protected.GET("/tasks/:id", svc.taskHandler.GetByID)
			protected.PUT("/tasks/:id", svc.taskHandler.Update)
			protected.PATCH("/tasks/:id/status", svc.taskHandler.UpdateStatus)
			protected.DELETE("/tasks/:id", svc.taskHandler.Delete)
		}
	}
}
