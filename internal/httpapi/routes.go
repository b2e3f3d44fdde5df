package httpapi

import (
	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/rbac"
)

// Register mounts the versioned API under /v1 behind authMW.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(authMW)

	sync := v1.Group("/sync")
	sync.Use(rbac.Require(rbac.PermSync))
	{
		sync.POST("/records", h.SyncRecord)
		sync.POST("/batch", h.SyncBatch)
	}

	ev := v1.Group("/events")
	ev.Use(rbac.Require(rbac.PermReadEvents))
	{
		ev.GET("", h.ListEvents)
		ev.GET("/summary", h.EventsSummary)
	}

	admin := v1.Group("/admin")
	admin.Use(rbac.Require(rbac.PermAdmin))
	{
		admin.GET("/configs", h.ListConfigs)
		admin.POST("/configs", h.CreateConfig)
		admin.PUT("/configs/:id/status", h.SetConfigStatus)
		admin.DELETE("/configs/:id", h.DeleteConfig)
		admin.POST("/configs/:id/mappings", h.AddMapping)

		admin.GET("/connections", h.ListConnections)
		admin.POST("/connections", h.CreateConnection)
		admin.DELETE("/connections/:id", h.DeleteConnection)

		admin.GET("/regions", h.ListRegions)
	}
}
