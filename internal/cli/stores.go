package cli

import (
	"context"
	"database/sql"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/migrations"
	"clevertap-sync/pkg/utils"
)

// stores bundles the repositories a sync run needs. Without a DSN every
// store is in memory and discarded when the command exits.
type stores struct {
	db      *sql.DB
	configs mapping.Store
	conns   *connections.Service
	events  events.Repository
	schema  events.Schema
}

func openStores(ctx context.Context, dsn string, regions *clevertap.RegionTable, workers int) (*stores, error) {
	if dsn == "" {
		return &stores{
			configs: mapping.NewMemoryRepo(),
			conns:   connections.NewService(connections.NewMemoryRepo(), regions),
			events:  events.NewMemoryRepo(),
			schema:  events.DefaultSchema,
		}, nil
	}

	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{Workers: workers})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect", err)
	}
	st, err := postgresStores(ctx, db, regions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func postgresStores(ctx context.Context, db *sql.DB, regions *clevertap.RegionTable) (*stores, error) {
	version, err := migrations.Version(ctx, db)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "schema version (run ctsync migrate)", err)
	}
	schema, err := events.DiscoverSchema(ctx, db, version)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "event schema", err)
	}
	return &stores{
		db:      db,
		configs: mapping.NewPostgresRepo(db),
		conns:   connections.NewService(connections.NewPostgresRepo(db), regions),
		events:  events.NewPostgresRepo(db, schema),
		schema:  schema,
	}, nil
}

// recent returns up to n of the latest events, oldest first.
func (s *stores) recent(ctx context.Context, n int) []events.SyncEvent {
	if n <= 0 {
		return nil
	}
	evs, err := s.events.List(ctx, events.Filter{Limit: n})
	if err != nil {
		return nil
	}
	slices.Reverse(evs)
	return evs
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
