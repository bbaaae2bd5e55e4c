package http

import (
	"github.com/gin-gonic/gin"

	"issuecompass/internal/app"
	"issuecompass/internal/bootstrap"
	"issuecompass/internal/transport/http/handler"
	"issuecompass/internal/transport/http/middleware"
)

func NewRouter(a *bootstrap.App) *gin.Engine {
	gin.SetMode(a.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), a.Metrics.GinMiddleware())

	healthHandler := handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, a.HealthChecks())
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	RegisterRoutes(router, a.Auth, a.Workspaces, a.Config.Auth.JWTSecret, a.Config.Attachment.MaxBytes)
	return router
}

// RegisterRoutes mounts the /api/v1 auth and workspace endpoints.
func RegisterRoutes(router gin.IRouter, authService *app.AuthService, workspaces *app.WorkspaceManager, jwtSecret string, maxAttachmentBytes int) {
	authHandler := handler.NewAuthHandler(authService)
	workspaceHandler := handler.NewWorkspaceHandler(workspaces, authService, maxAttachmentBytes)
	requireAuth := middleware.AuthJWT(jwtSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)
	authGroup.PUT("/me/language", requireAuth, authHandler.UpdateLanguage)

	wsGroup := v1.Group("/workspace")
	wsGroup.Use(requireAuth)
	wsGroup.POST("/attachment", workspaceHandler.StageAttachment)
	wsGroup.DELETE("/attachment", workspaceHandler.ClearAttachment)
	wsGroup.POST("/queries", workspaceHandler.SubmitQuery)
	wsGroup.POST("/more", workspaceHandler.LoadMore)
	wsGroup.POST("/items/:id/detail", workspaceHandler.RequestItemDetail)
	wsGroup.POST("/history/:id/restore", workspaceHandler.RestoreFromHistory)
	wsGroup.GET("/current", workspaceHandler.Current)
	wsGroup.GET("/history", workspaceHandler.History)
	wsGroup.GET("/logs", workspaceHandler.Logs)
	wsGroup.GET("/events", workspaceHandler.Events)
	wsGroup.GET("/report", workspaceHandler.Report)
}
