package connections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo stores connections in the connections table. name is unique
// across live and deleted rows.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectConnection = `
SELECT id, name, label, account_id, passcode, region, url, deleted, created_at
FROM connections
`

func (r *PostgresRepo) Insert(ctx context.Context, c Connection) error {
	const q = `
INSERT INTO connections (id, name, label, account_id, passcode, region, url, deleted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	if _, err := r.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Label, c.AccountID, c.Passcode, c.Region, c.URL, c.Deleted, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]Connection, error) {
	rows, err := r.db.QueryContext(ctx, selectConnection+"ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("select connections: %w", err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Connection, error) {
	c, err := scanConnection(r.db.QueryRowContext(ctx, selectConnection+"WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Update(ctx context.Context, c Connection) error {
	const q = `
UPDATE connections
SET label = $2, account_id = $3, passcode = $4, region = $5, url = $6, deleted = $7
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, c.ID, c.Label, c.AccountID, c.Passcode, c.Region, c.URL, c.Deleted)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(s scanner) (Connection, error) {
	var c Connection
	err := s.Scan(&c.ID, &c.Name, &c.Label, &c.AccountID, &c.Passcode, &c.Region, &c.URL, &c.Deleted, &c.CreatedAt)
	return c, err
}
