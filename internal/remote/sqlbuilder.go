package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect abstracts the placeholder syntax of a SQL backend.
type dialect interface {
	placeholder(n int) string
}

type postgresDialect struct{}

func (postgresDialect) placeholder(n int) string { return "$" + strconv.Itoa(n) }

type sqliteDialect struct{}

func (sqliteDialect) placeholder(int) string { return "?" }

var sqlOps = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// builder accumulates a statement and its positional arguments.
type builder struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d dialect) *builder {
	return &builder{d: d}
}

func (b *builder) write(s string) *builder {
	b.sb.WriteString(s)
	return b
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *builder) where(filters []Filter) {
	if len(filters) == 0 {
		return
	}
	b.write(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.write(" AND ")
		}
		if f.Op == OpIn {
			vals := f.Value.([]any)
			if len(vals) == 0 {
				b.write("1 = 0")
				continue
			}
			ph := make([]string, len(vals))
			for j, v := range vals {
				ph[j] = b.arg(v)
			}
			b.write(f.Column + " IN (" + strings.Join(ph, ", ") + ")")
			continue
		}
		if f.Value == nil {
			switch f.Op {
			case OpEq:
				b.write(f.Column + " IS NULL")
				continue
			case OpNeq:
				b.write(f.Column + " IS NOT NULL")
				continue
			}
		}
		b.write(f.Column + " " + sqlOps[f.Op] + " " + b.arg(f.Value))
	}
}

func buildSelect(d dialect, q Query) (string, []any) {
	b := newBuilder(d)
	b.write("SELECT * FROM " + q.Table)
	b.where(q.Filters)
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = o.Column + " " + dir
		}
		b.write(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.write(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.sb.String(), b.args
}

func buildInsert(d dialect, table string, rec Record) (string, []any) {
	b := newBuilder(d)
	cols := rec.Columns()
	ph := make([]string, len(cols))
	for i, c := range cols {
		ph[i] = b.arg(rec[c])
	}
	b.write(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(ph, ", ")))
	return b.sb.String(), b.args
}

func buildUpsert(d dialect, table string, rec Record, conflict []string) (string, []any) {
	sql, args := buildInsert(d, table, rec)
	sql = strings.TrimSuffix(sql, " RETURNING *")

	isKey := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		isKey[c] = true
	}
	var sets []string
	for _, c := range rec.Columns() {
		if !isKey[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sql += fmt.Sprintf(" ON CONFLICT (%s) %s RETURNING *", strings.Join(conflict, ", "), action)
	return sql, args
}

func buildUpdate(d dialect, q Query, changes Record) (string, []any) {
	b := newBuilder(d)
	cols := changes.Columns()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + b.arg(changes[c])
	}
	b.write("UPDATE " + q.Table + " SET " + strings.Join(sets, ", "))
	b.where(q.Filters)
	return b.sb.String(), b.args
}

func buildDelete(d dialect, q Query) (string, []any) {
	b := newBuilder(d)
	b.write("DELETE FROM " + q.Table)
	b.where(q.Filters)
	return b.sb.String(), b.args
}
