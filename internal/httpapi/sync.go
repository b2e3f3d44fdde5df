package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/records"
	"clevertap-sync/internal/syncer"
	"clevertap-sync/pkg/logger"
)

// Engine is the slice of the sync engine the handlers call.
type Engine interface {
	Synchronize(ctx context.Context, rec records.Record, hint string) (syncer.Result, error)
	SynchronizeBatch(ctx context.Context, recs []records.Record) (syncer.BatchResult, error)
}

type syncRecordRequest struct {
	EntityType string           `json:"entity_type"`
	Record     records.Envelope `json:"record"`
}

type syncBatchRequest struct {
	Records []records.Envelope `json:"records"`
}

// SyncRecord runs one record through the engine. Skipped, succeeded and
// failed records all answer 200 with the outcome; only configuration
// problems are errors.
func (h Handlers) SyncRecord(c *gin.Context) {
	if h.Engine == nil {
		notConfigured(c, "sync engine")
		return
	}
	var req syncRecordRequest
	if err := decodeJSON(c, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := req.Record.Record()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Engine.Synchronize(c.Request.Context(), rec, req.EntityType)
	logger.AddAttrs(c, "record_id", res.RecordID, "outcome", res.Outcome, "event_id", res.EventID)
	if err != nil {
		h.syncError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) SyncBatch(c *gin.Context) {
	if h.Engine == nil {
		notConfigured(c, "sync engine")
		return
	}
	var req syncBatchRequest
	if err := decodeJSON(c, &req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Records) == 0 || len(req.Records) > maxBatchCount {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "records must hold 1 to 1000 entries"})
		return
	}
	recs := make([]records.Record, 0, len(req.Records))
	for i, env := range req.Records {
		rec, err := env.Record()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
		recs = append(recs, rec)
	}

	out, err := h.Engine.SynchronizeBatch(c.Request.Context(), recs)
	logger.AddAttrs(c, "records", len(recs), "succeeded", out.Succeeded, "failed", out.Failed,
		"skipped", out.Skipped, "halted", out.Halted)
	if err != nil {
		h.syncError(c, err, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) syncError(c *gin.Context, err error, partial any) {
	_ = c.Error(err)
	if clevertap.IsConfigError(err) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "result": partial})
		return
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "sync configuration unavailable", "result": partial})
}
