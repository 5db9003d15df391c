package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var errNoRow = errors.New("statement returned no row")

// SQLiteClient stores the remote tables in a single SQLite file. It serves
// single-host deployments and local development.
type SQLiteClient struct {
	db *sql.DB
}

var _ Client = (*SQLiteClient)(nil)

// NewSQLiteClient opens (and creates) the database at path.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY storms.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.InfoContext(ctx, "Opened SQLite remote store", "path", path)
	return &SQLiteClient{db: db}, nil
}

func (c *SQLiteClient) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(false); err != nil {
		return nil, err
	}
	query, args := buildSelect(sqliteDialect{}, q)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	recs, err := collectSQL(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	return recs, nil
}

func (c *SQLiteClient) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	query, args := buildInsert(sqliteDialect{}, table, rec)
	return c.returningOne(ctx, table, query, args)
}

func (c *SQLiteClient) Upsert(ctx context.Context, table string, rec Record, conflict ...string) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict columns", table)
	}
	query, args := buildUpsert(sqliteDialect{}, table, rec, conflict)
	out, err := c.returningOne(ctx, table, query, args)
	if !errors.Is(err, errNoRow) {
		return out, err
	}
	return refetch(ctx, c, table, rec, conflict)
}

func (c *SQLiteClient) Update(ctx context.Context, q Query, changes Record) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	if err := checkRecord(changes); err != nil {
		return 0, err
	}
	query, args := buildUpdate(sqliteDialect{}, q, changes)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", q.Table, err)
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Delete(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	query, args := buildDelete(sqliteDialect{}, q)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", q.Table, err)
	}
	return res.RowsAffected()
}

func (c *SQLiteClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteClient) returningOne(ctx context.Context, table, query string, args []any) (Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	recs, err := collectSQL(rows)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	if len(recs) == 0 {
		return nil, errNoRow
	}
	return recs[0], nil
}

func collectSQL(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// refetch loads the row an ON CONFLICT DO NOTHING upsert left untouched.
func refetch(ctx context.Context, c Client, table string, rec Record, conflict []string) (Record, error) {
	q := From(table).Take(1)
	for _, col := range conflict {
		q = q.Where(Eq(col, rec[col]))
	}
	recs, err := c.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("upsert %s: %w", table, errNoRow)
	}
	return recs[0], nil
}
