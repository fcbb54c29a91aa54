package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Portal  *PortalHandler
	Watch   *WatchHandler
	Exports *ExportHandler
	Metrics *MetricsHandler
}

// Register mounts the API on api; health and metrics go on root.
func (rt Routes) Register(root gin.IRouter, api gin.IRouter) {
	if rt.Metrics != nil {
		root.GET("/health", rt.Metrics.Health)
		root.GET("/ready", rt.Metrics.Ready)
		root.GET("/metrics", rt.Metrics.Prometheus)
		api.GET("/status", rt.Metrics.Status)
	}

	sessions := api.Group("/sessions")
	if rt.Portal != nil {
		sessions.POST("", rt.Portal.CreateSession)
		sessions.DELETE("/:id", rt.Portal.CloseSession)
		sessions.POST("/:id/navigate", rt.Portal.Navigate)
		sessions.GET("/:id/screen", rt.Portal.Screen)
		sessions.POST("/:id/screen/reload", rt.Portal.Reload)
		sessions.PUT("/:id/profile/language", rt.Portal.ChangeLanguage)
		sessions.POST("/:id/groups/:name/membership", rt.Portal.ToggleMembership)
		sessions.POST("/:id/help", rt.Portal.SubmitHelp)
	}
	if rt.Watch != nil {
		sessions.GET("/:id/screen/watch", rt.Watch.Watch)
	}
	if rt.Exports != nil {
		sessions.GET("/:id/screen/export", rt.Exports.Generate)
		api.GET("/exports/:token", rt.Exports.Download)
	}
}
