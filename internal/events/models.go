package events

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// SyncEvent is the append-only record of one synchronization attempt.
// Events are never updated or deleted.
type SyncEvent struct {
	ID         string `json:"id" db:"id"`
	RecordID   string `json:"record_id" db:"record_id"`
	RecordType string `json:"record_type" db:"record_type"`
	Status     Status `json:"status" db:"status"`

	// ResponseTrace is the remote response followed by the request body, or
	// the request body alone when no call was made.
	ResponseTrace string `json:"response_trace" db:"response_trace"`

	// References holds typed record links keyed by store column, e.g.
	// lead_id. Only columns present in the active Schema are set.
	References map[string]string `json:"references,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Filter narrows List. Zero values match everything; Limit 0 means no limit.
type Filter struct {
	RecordID   string
	RecordType string
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
}

// Matches applies every filter except Limit.
func (f Filter) Matches(e SyncEvent) bool {
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	if f.RecordType != "" && !strings.EqualFold(e.RecordType, f.RecordType) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Schema describes which record-type reference columns the event store has.
// It is computed once at startup and injected into the Logger.
type Schema struct {
	Version int64
	columns map[string]string // lower(record type) -> column
}

var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*_id$`)

// NewSchema builds a descriptor from column names of the form <type>_id.
// Other names are ignored.
func NewSchema(version int64, columns ...string) Schema {
	s := Schema{Version: version, columns: map[string]string{}}
	for _, c := range columns {
		c = strings.ToLower(strings.TrimSpace(c))
		if !columnPattern.MatchString(c) || c == "record_id" {
			continue
		}
		s.columns[strings.TrimSuffix(c, "_id")] = c
	}
	return s
}

// DefaultSchema matches the columns created by the initial migration.
var DefaultSchema = NewSchema(1, "account_id", "contact_id", "lead_id", "opportunity_id")

// Column returns the reference column for recordType, if the store has one.
func (s Schema) Column(recordType string) (string, bool) {
	c, ok := s.columns[strings.ToLower(strings.TrimSpace(recordType))]
	return c, ok
}

func (s Schema) Columns() []string {
	out := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type SummaryRequest struct {
	Range      TimeRange `json:"range"`
	RecordType string    `json:"record_type,omitempty"`
}

type TypeSummary struct {
	RecordType string `json:"record_type"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

type Summary struct {
	Range       TimeRange     `json:"range"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	ByType      []TypeSummary `json:"by_type"`
}
