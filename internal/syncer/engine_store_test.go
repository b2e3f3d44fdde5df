package syncer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clevertap-sync/internal/events"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/metrics"
	"clevertap-sync/internal/records"
)

func TestSynchronize_RecordsFailureWhenCallerTimesOut(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		w.WriteHeader(http.StatusOK)
	})
	h.addLeadConfig(t, mapping.StatusActive)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h.engine.events = events.NewLogger(events.NewPostgresRepo(db, events.DefaultSchema), events.DefaultSchema, quietLogger(), nil)
	mock.ExpectExec("INSERT INTO sync_events").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := h.engine.Synchronize(ctx, testLead(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.EventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSynchronize_EventIDEmptyWhenStoreFails(t *testing.T) {
	h := newHarness(t, respond(200, `{"status":"success","processed":1}`))
	h.addLeadConfig(t, mapping.StatusActive)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h.engine.events = events.NewLogger(events.NewPostgresRepo(db, events.DefaultSchema), events.DefaultSchema, quietLogger(), nil)
	mock.ExpectExec("INSERT INTO sync_events").WillReturnError(assert.AnError)

	res, err := h.engine.Synchronize(context.Background(), testLead(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.EventID)
}

func TestSynchronize_OutcomeLabelsAreBounded(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := newHarness(t, respond(200, `{"status":"success","processed":1}`), WithMetrics(m))
	h.addLeadConfig(t, mapping.StatusActive)
	ctx := context.Background()

	for _, typ := range []string{"Widget", "Gadget-42", "x; DROP", "", "   "} {
		rec := records.Map{RecordID: "r-" + typ, RecordType: typ, Values: map[string]any{"Email": "a@b.c"}}
		res, err := h.engine.Synchronize(ctx, rec, "")
		require.NoError(t, err)
		require.Equal(t, OutcomeSkipped, res.Outcome)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(m.SyncOutcomesTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SyncOutcomesTotal.WithLabelValues(metrics.UnresolvedRecordType, "skipped")))

	// Entity matching is case-insensitive; the label is the configured name.
	_, err := h.engine.Synchronize(ctx, testLead(), "LEAD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncOutcomesTotal.WithLabelValues("Lead", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SyncOutcomesTotal))
}
