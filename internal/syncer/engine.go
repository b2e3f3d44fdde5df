// Package syncer drives records through resolve, build, dispatch and log.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/metrics"
	"clevertap-sync/internal/payload"
	"clevertap-sync/internal/records"
)

type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	// OutcomeHalted means the record was not attempted because the run
	// stopped on a configuration error.
	OutcomeHalted Outcome = "halted"
)

type Result struct {
	RecordID   string  `json:"record_id,omitempty"`
	RecordType string  `json:"record_type,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	StatusCode int     `json:"status_code,omitempty"`
	EventID    string  `json:"event_id,omitempty"`
}

type ConfigResolver interface {
	Resolve(ctx context.Context, entityType string) (mapping.ResolvedConfig, bool, error)
}

// ConnectionSource yields the connection to dispatch through.
type ConnectionSource interface {
	Active(ctx context.Context, name string) (connections.Connection, error)
}

type Dispatcher interface {
	Send(ctx context.Context, url string, cred clevertap.Credentials, body []byte) (*clevertap.Response, error)
}

type EventLogger interface {
	Log(ctx context.Context, recordID, recordType string, resp *clevertap.Response, request string) events.SyncEvent
}

type Deps struct {
	Resolver    *mapping.Resolver
	Connections ConnectionSource
	Dispatcher  Dispatcher
	Events      EventLogger
}

type Engine struct {
	resolver    *mapping.Resolver
	builder     *payload.Builder
	connections ConnectionSource
	dispatcher  Dispatcher
	events      EventLogger

	connectionName string
	workers        int
	metrics        *metrics.Metrics
	log            *slog.Logger
}

type Option func(*Engine)

// WithConnectionName pins the connection by programmatic name. Empty uses
// the earliest live connection.
func WithConnectionName(name string) Option { return func(e *Engine) { e.connectionName = name } }

func WithWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func New(d Deps, opts ...Option) *Engine {
	e := &Engine{
		resolver:    d.Resolver,
		builder:     payload.NewBuilder(),
		connections: d.Connections,
		dispatcher:  d.Dispatcher,
		events:      d.Events,
		workers:     4,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Synchronize processes one record. hint overrides the record's own type
// when non-blank. The returned error is non-nil only for configuration
// errors and configuration-store failures; every other problem is captured
// as a Failed event.
func (e *Engine) Synchronize(ctx context.Context, rec records.Record, hint string) (Result, error) {
	ep := &endpoint{src: e.connections, name: e.connectionName}
	return e.process(ctx, rec, hint, e.resolver, ep)
}

// endpoint resolves the active connection at most once.
type endpoint struct {
	src  ConnectionSource
	name string

	once sync.Once
	conn connections.Connection
	err  error
}

func (p *endpoint) get(ctx context.Context) (connections.Connection, error) {
	p.once.Do(func() {
		if p.src == nil {
			p.err = &clevertap.ConfigError{Reason: "no connection source configured"}
			return
		}
		p.conn, p.err = p.src.Active(ctx, p.name)
	})
	return p.conn, p.err
}

func (e *Engine) process(ctx context.Context, rec records.Record, hint string, resolver ConfigResolver, ep *endpoint) (Result, error) {
	if rec == nil {
		return e.skip(Result{}, metrics.UnresolvedRecordType, "record is nil"), nil
	}
	entity := strings.TrimSpace(hint)
	if entity == "" {
		entity = strings.TrimSpace(rec.Type())
	}
	res := Result{RecordID: rec.ID(), RecordType: entity}

	rc, ok, err := resolver.Resolve(ctx, entity)
	switch {
	case errors.Is(err, mapping.ErrInvalidEntityType):
		return e.skip(res, metrics.UnresolvedRecordType, "record has no entity type"), nil
	case err != nil:
		res.Outcome = OutcomeHalted
		res.Reason = err.Error()
		e.log.Error("sync configuration unavailable", "record_type", entity, "err", err)
		return res, err
	case !ok:
		return e.skip(res, metrics.UnresolvedRecordType, "no active sync configuration"), nil
	}
	label := rc.Config.SourceEntity
	if !rc.Usable() {
		return e.skip(res, label, "sync configuration has no mandatory customer_id mapping"), nil
	}

	p, err := e.builder.Build(rec, rc)
	if err != nil {
		request := err.Error()
		var be *payload.BuildError
		if errors.As(err, &be) && be.Partial != "" {
			request = be.Partial
		}
		e.log.Warn("payload build failed", "record_id", res.RecordID, "record_type", entity, "err", err)
		return e.finish(ctx, res, label, nil, request, err.Error()), nil
	}
	body, err := p.Body()
	if err != nil {
		return e.finish(ctx, res, label, nil, p.Trace(), err.Error()), nil
	}

	conn, err := ep.get(ctx)
	if err != nil {
		res.Outcome = OutcomeHalted
		res.Reason = err.Error()
		if clevertap.IsConfigError(err) {
			e.metrics.ConfigError()
		}
		e.log.Error("sync halted", "record_id", res.RecordID, "record_type", entity, "err", err)
		return res, err
	}

	start := time.Now()
	resp, sendErr := e.dispatcher.Send(ctx, conn.URL, conn.Credentials(), body)
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	e.metrics.Dispatch(code, time.Since(start))

	request := p.Trace()
	reason := ""
	if sendErr != nil {
		reason = sendErr.Error()
		request += "\nError: " + reason
		e.log.Warn("dispatch failed", "record_id", res.RecordID, "record_type", entity, "err", sendErr)
	} else if !resp.OK() {
		reason = fmt.Sprintf("remote returned HTTP %d", resp.StatusCode)
		e.log.Warn("dispatch rejected", "record_id", res.RecordID, "record_type", entity, "status", resp.StatusCode)
	}
	res.StatusCode = code
	return e.finish(ctx, res, label, resp, request, reason), nil
}

// skip and finish take the metric label separately from RecordType, which
// is caller input.
func (e *Engine) skip(res Result, label, reason string) Result {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	e.log.Debug("sync skipped", "record_id", res.RecordID, "record_type", res.RecordType, "reason", reason)
	e.metrics.Outcome(label, string(OutcomeSkipped))
	return res
}

func (e *Engine) finish(ctx context.Context, res Result, label string, resp *clevertap.Response, request, reason string) Result {
	res.Outcome = OutcomeFailed
	if e.events != nil {
		ev := e.events.Log(ctx, res.RecordID, res.RecordType, resp, request)
		res.EventID = ev.ID
	}
	if resp.OK() {
		res.Outcome = OutcomeSuccess
	} else {
		res.Reason = reason
	}
	e.metrics.Outcome(label, string(res.Outcome))
	return res
}

type BatchResult struct {
	Results   []Result `json:"results"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Halted    int      `json:"halted"`
}

// SynchronizeBatch processes records on a bounded worker pool. Configuration
// and connection are resolved once for the whole batch. Results are in input
// order. On a configuration error no further records are started; records
// already in flight complete, and the error is returned.
func (e *Engine) SynchronizeBatch(ctx context.Context, recs []records.Record) (BatchResult, error) {
	e.metrics.Batch(len(recs))
	snap := e.resolver.Snapshot()
	ep := &endpoint{src: e.connections, name: e.connectionName}

	results := make([]Result, len(recs))
	var halted atomic.Bool

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, rec := range recs {
		if halted.Load() || ctx.Err() != nil {
			results[i] = haltedResult(rec)
			continue
		}
		g.Go(func() error {
			if halted.Load() {
				results[i] = haltedResult(rec)
				return nil
			}
			r, err := e.process(ctx, rec, "", snap, ep)
			results[i] = r
			if err != nil {
				halted.Store(true)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	out := BatchResult{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			out.Succeeded++
		case OutcomeFailed:
			out.Failed++
		case OutcomeSkipped:
			out.Skipped++
		default:
			out.Halted++
		}
	}
	return out, err
}

func haltedResult(rec records.Record) Result {
	r := Result{Outcome: OutcomeHalted, Reason: "batch halted"}
	if rec != nil {
		r.RecordID, r.RecordType = rec.ID(), rec.Type()
	}
	return r
}
