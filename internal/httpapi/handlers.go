package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Engine      Engine
	Configs     *mapping.Service
	Connections *connections.Service
	Events      *events.Service
	Regions     *clevertap.RegionTable
}

const (
	maxBodyBytes  = 8 << 20
	maxBatchCount = 1000
)

// decodeJSON reads the request body keeping numbers as json.Number.
func decodeJSON(c *gin.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case clevertap.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mapping.ErrNotFound), errors.Is(err, connections.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mapping.ErrInvalidRequest),
		errors.Is(err, connections.ErrInvalidRequest),
		errors.Is(err, connections.ErrAlreadyDeleted),
		errors.Is(err, events.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s not configured", what)})
}

// Healthz reports liveness.
func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListRegions lists the endpoint table the engine dispatches with.
func (h Handlers) ListRegions(c *gin.Context) {
	if h.Regions == nil {
		notConfigured(c, "regions")
		return
	}
	out := make([]gin.H, 0)
	for _, code := range h.Regions.Codes() {
		url, _ := h.Regions.Lookup(code)
		out = append(out, gin.H{"code": code, "url": url})
	}
	c.JSON(http.StatusOK, gin.H{"regions": out})
}
