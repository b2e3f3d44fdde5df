package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/mapping"
)

// --- Sync configurations ---

func (h Handlers) ListConfigs(c *gin.Context) {
	if h.Configs == nil {
		notConfigured(c, "configs")
		return
	}
	out, err := h.Configs.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": out})
}

func (h Handlers) CreateConfig(c *gin.Context) {
	if h.Configs == nil {
		notConfigured(c, "configs")
		return
	}
	var req mapping.CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rc, err := h.Configs.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"config": rc, "usable": rc.Usable()})
}

type setStatusRequest struct {
	Status mapping.Status `json:"status"`
}

func (h Handlers) SetConfigStatus(c *gin.Context) {
	if h.Configs == nil {
		notConfigured(c, "configs")
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Configs.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
}

func (h Handlers) DeleteConfig(c *gin.Context) {
	if h.Configs == nil {
		notConfigured(c, "configs")
		return
	}
	if err := h.Configs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) AddMapping(c *gin.Context) {
	if h.Configs == nil {
		notConfigured(c, "configs")
		return
	}
	var req mapping.FieldMapping
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.Configs.AddMapping(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// --- Connections ---

func (h Handlers) ListConnections(c *gin.Context) {
	if h.Connections == nil {
		notConfigured(c, "connections")
		return
	}
	out, err := h.Connections.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

func (h Handlers) CreateConnection(c *gin.Context) {
	if h.Connections == nil {
		notConfigured(c, "connections")
		return
	}
	var req connections.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	conn, err := h.Connections.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h Handlers) DeleteConnection(c *gin.Context) {
	if h.Connections == nil {
		notConfigured(c, "connections")
		return
	}
	conn, err := h.Connections.SoftDelete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}
