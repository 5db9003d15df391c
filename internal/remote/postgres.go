package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresClient talks to PostgreSQL through a pgx connection pool.
type PostgresClient struct {
	pool *pgxpool.Pool
}

var _ Client = (*PostgresClient)(nil)

// NewPostgresClient opens a pool for databaseURL and verifies connectivity.
func NewPostgresClient(ctx context.Context, databaseURL string) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.InfoContext(ctx, "Connected to PostgreSQL",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)

	return &PostgresClient{pool: pool}, nil
}

func (c *PostgresClient) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(false); err != nil {
		return nil, err
	}
	sql, args := buildSelect(postgresDialect{}, q)
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	recs, err := collectPgx(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	return recs, nil
}

func (c *PostgresClient) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	sql, args := buildInsert(postgresDialect{}, table, rec)
	return c.returningOne(ctx, table, sql, args)
}

func (c *PostgresClient) Upsert(ctx context.Context, table string, rec Record, conflict ...string) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict columns", table)
	}
	sql, args := buildUpsert(postgresDialect{}, table, rec, conflict)
	out, err := c.returningOne(ctx, table, sql, args)
	if !errors.Is(err, errNoRow) {
		return out, err
	}
	return refetch(ctx, c, table, rec, conflict)
}

func (c *PostgresClient) Update(ctx context.Context, q Query, changes Record) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	if err := checkRecord(changes); err != nil {
		return 0, err
	}
	sql, args := buildUpdate(postgresDialect{}, q, changes)
	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", q.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresClient) Delete(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	sql, args := buildDelete(postgresDialect{}, q)
	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", q.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *PostgresClient) Close() error {
	c.pool.Close()
	return nil
}

func (c *PostgresClient) returningOne(ctx context.Context, table, sql string, args []any) (Record, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	recs, err := collectPgx(rows)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	if len(recs) == 0 {
		return nil, errNoRow
	}
	return recs[0], nil
}

func collectPgx(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
