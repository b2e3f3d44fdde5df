package events

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PostgresRepo appends to sync_events. Reference columns are limited to
// those in the Schema it was built with.
type PostgresRepo struct {
	db     *sql.DB
	schema Schema
}

func NewPostgresRepo(db *sql.DB, schema Schema) *PostgresRepo {
	return &PostgresRepo{db: db, schema: schema}
}

func (r *PostgresRepo) Append(ctx context.Context, e SyncEvent) error {
	cols := []string{"id", "record_id", "record_type", "status", "response_trace", "created_at"}
	args := []any{e.ID, e.RecordID, e.RecordType, e.Status, e.ResponseTrace, e.CreatedAt}

	refs := make([]string, 0, len(e.References))
	for col := range e.References {
		refs = append(refs, col)
	}
	sort.Strings(refs)
	for _, col := range refs {
		if !r.hasColumn(col) {
			continue
		}
		cols = append(cols, col)
		args = append(args, e.References[col])
	}

	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := "INSERT INTO sync_events (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ",") + ")"
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

func (r *PostgresRepo) hasColumn(col string) bool {
	for _, c := range r.schema.columns {
		if c == col {
			return true
		}
	}
	return false
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]SyncEvent, error) {
	refCols := r.schema.Columns()
	sel := append([]string{"id", "record_id", "record_type", "status", "response_trace", "created_at"}, refCols...)

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.RecordID != "" {
		add("record_id = $%d", f.RecordID)
	}
	if f.RecordType != "" {
		add("lower(record_type) = lower($%d)", f.RecordType)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	q := "SELECT " + strings.Join(sel, ", ") + " FROM sync_events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select sync events: %w", err)
	}
	defer rows.Close()

	var out []SyncEvent
	for rows.Next() {
		var (
			e    SyncEvent
			refs = make([]sql.NullString, len(refCols))
		)
		dest := []any{&e.ID, &e.RecordID, &e.RecordType, &e.Status, &e.ResponseTrace, &e.CreatedAt}
		for i := range refs {
			dest = append(dest, &refs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, ref := range refs {
			if ref.Valid && ref.String != "" {
				if e.References == nil {
					e.References = map[string]string{}
				}
				e.References[refCols[i]] = ref.String
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DiscoverSchema reads the <type>_id reference columns of sync_events from
// information_schema. version tags the descriptor, normally the applied
// migration version.
func DiscoverSchema(ctx context.Context, db *sql.DB, version int64) (Schema, error) {
	const q = `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = 'sync_events'
ORDER BY ordinal_position
`
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return Schema{}, fmt.Errorf("discover sync_events columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return Schema{}, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}
	if len(cols) == 0 {
		return Schema{}, fmt.Errorf("discover sync_events columns: table not found")
	}
	return NewSchema(version, cols...), nil
}
