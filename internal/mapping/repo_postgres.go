package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clevertap-sync/pkg/utils"
)

// PostgresRepo stores configurations in sync_configurations and their
// mappings in field_mappings (ON DELETE CASCADE).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListActive(ctx context.Context, sourceEntity string, direction Direction) ([]SyncConfiguration, error) {
	const q = `
SELECT id, source_entity, target_entity, status, direction, created_at
FROM sync_configurations
WHERE lower(source_entity) = lower($1) AND direction = $2 AND status = $3
ORDER BY created_at, id
`
	return r.queryConfigs(ctx, q, sourceEntity, direction, StatusActive)
}

func (r *PostgresRepo) ListConfigs(ctx context.Context) ([]SyncConfiguration, error) {
	const q = `
SELECT id, source_entity, target_entity, status, direction, created_at
FROM sync_configurations
ORDER BY created_at, id
`
	return r.queryConfigs(ctx, q)
}

func (r *PostgresRepo) queryConfigs(ctx context.Context, q string, args ...any) ([]SyncConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select sync configurations: %w", err)
	}
	defer rows.Close()

	var out []SyncConfiguration
	for rows.Next() {
		var c SyncConfiguration
		if err := rows.Scan(&c.ID, &c.SourceEntity, &c.TargetEntity, &c.Status, &c.Direction, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) GetConfig(ctx context.Context, id string) (SyncConfiguration, error) {
	const q = `
SELECT id, source_entity, target_entity, status, direction, created_at
FROM sync_configurations
WHERE id = $1
`
	var c SyncConfiguration
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.SourceEntity, &c.TargetEntity, &c.Status, &c.Direction, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyncConfiguration{}, ErrNotFound
		}
		return SyncConfiguration{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Mappings(ctx context.Context, configID string) ([]FieldMapping, error) {
	const q = `
SELECT id, config_id, position, source_field, target_field, data_type, mandatory
FROM field_mappings
WHERE config_id = $1
ORDER BY position
`
	rows, err := r.db.QueryContext(ctx, q, configID)
	if err != nil {
		return nil, fmt.Errorf("select field mappings: %w", err)
	}
	defer rows.Close()

	var out []FieldMapping
	for rows.Next() {
		var m FieldMapping
		if err := rows.Scan(&m.ID, &m.ConfigID, &m.Position, &m.SourceField, &m.TargetField, &m.DataType, &m.Mandatory); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) CreateConfig(ctx context.Context, cfg SyncConfiguration, mappings []FieldMapping) error {
	const insertConfig = `
INSERT INTO sync_configurations (id, source_entity, target_entity, status, direction, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertConfig,
			cfg.ID, cfg.SourceEntity, cfg.TargetEntity, cfg.Status, cfg.Direction, cfg.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert sync configuration: %w", err)
		}
		for _, m := range mappings {
			if err := insertMapping(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) AddMapping(ctx context.Context, m FieldMapping) error {
	return insertMapping(ctx, r.db, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMapping(ctx context.Context, db execer, m FieldMapping) error {
	const q = `
INSERT INTO field_mappings (id, config_id, position, source_field, target_field, data_type, mandatory)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	if _, err := db.ExecContext(ctx, q,
		m.ID, m.ConfigID, m.Position, m.SourceField, m.TargetField, m.DataType, m.Mandatory,
	); err != nil {
		return fmt.Errorf("insert field mapping: %w", err)
	}
	return nil
}

func (r *PostgresRepo) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_configurations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update sync configuration status: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepo) DeleteConfig(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sync configuration: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
