package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/metrics"
)

// Repository is the append-only persistence contract for sync events. No
// update or delete is offered.
type Repository interface {
	Append(ctx context.Context, e SyncEvent) error
	List(ctx context.Context, f Filter) ([]SyncEvent, error)
}

// Logger writes one SyncEvent per attempt. Log never returns an error and
// never panics: a lost event is preferable to disturbing the sync it records.
type Logger struct {
	repo    Repository
	schema  Schema
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// WriteTimeout bounds a single event write. Writes are detached from the
// caller's cancellation: a sync that failed because its context ended must
// still be recorded.
const WriteTimeout = 5 * time.Second

func NewLogger(repo Repository, schema Schema, log *slog.Logger, m *metrics.Metrics) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, schema: schema, log: log, metrics: m, clock: time.Now}
}

// Log records the outcome. resp is nil when no HTTP status was obtained.
// It returns the event it tried to write; ID is empty when nothing was
// stored.
func (l *Logger) Log(ctx context.Context, recordID, recordType string, resp *clevertap.Response, request string) (ev SyncEvent) {
	defer func() {
		if p := recover(); p != nil {
			l.log.Warn("sync event write panicked", "record_id", recordID, "record_type", recordType, "panic", fmt.Sprint(p))
			l.metrics.EventLogFailed()
			ev.ID = ""
		}
	}()

	ev = l.buildEvent(recordID, recordType, resp, request)
	if l.repo == nil {
		l.log.Warn("sync event dropped: repository not configured", "record_id", recordID)
		l.metrics.EventLogFailed()
		ev.ID = ""
		return ev
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
	defer cancel()
	if err := l.repo.Append(wctx, ev); err != nil {
		l.log.Warn("sync event write failed", "record_id", recordID, "record_type", recordType, "status", ev.Status, "err", err)
		l.metrics.EventLogFailed()
		ev.ID = ""
	}
	return ev
}

func (l *Logger) buildEvent(recordID, recordType string, resp *clevertap.Response, request string) SyncEvent {
	ev := SyncEvent{
		ID:         uuid.NewString(),
		RecordID:   recordID,
		RecordType: recordType,
		Status:     StatusFailed,
		CreatedAt:  l.clock().UTC(),
	}
	if resp.OK() {
		ev.Status = StatusSuccess
	}

	var b strings.Builder
	if resp != nil {
		fmt.Fprintf(&b, "Response (%d): %s\nRequest: %s", resp.StatusCode, resp.Body, request)
	} else {
		fmt.Fprintf(&b, "%s %s\nRequest: %s", recordType, recordID, request)
	}

	if col, ok := l.schema.Column(recordType); ok {
		ev.References = map[string]string{col: recordID}
	} else if resp != nil {
		// No typed column for this record type; keep it identifiable.
		fmt.Fprintf(&b, "\nRecord: %s %s", recordType, recordID)
	}
	ev.ResponseTrace = b.String()
	return ev
}
