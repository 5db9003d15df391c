// Package remote is a small table/filter client for the relational store
// that holds users, expenses, alerts, income, goals and settings.
//
// Callers address rows by table name and filter predicates and exchange
// key/value records, so the same repository code runs against PostgreSQL,
// SQLite or the in-memory backend.
package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Filter is a single column predicate. For OpIn, Value must be a []any.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(col string, v any) Filter   { return Filter{Column: col, Op: OpEq, Value: v} }
func Neq(col string, v any) Filter  { return Filter{Column: col, Op: OpNeq, Value: v} }
func Gt(col string, v any) Filter   { return Filter{Column: col, Op: OpGt, Value: v} }
func Gte(col string, v any) Filter  { return Filter{Column: col, Op: OpGte, Value: v} }
func Lt(col string, v any) Filter   { return Filter{Column: col, Op: OpLt, Value: v} }
func Lte(col string, v any) Filter  { return Filter{Column: col, Op: OpLte, Value: v} }
func In(col string, v ...any) Filter { return Filter{Column: col, Op: OpIn, Value: v} }

// Order sorts results by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows of one table. The zero Limit means no limit.
type Query struct {
	Table   string
	Filters []Filter
	Orders  []Order
	Limit   int
}

// From starts a query on table.
func From(table string) Query {
	return Query{Table: table}
}

// Where returns a copy of q with additional filters.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

// OrderBy returns a copy of q with an additional sort key.
func (q Query) OrderBy(col string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: col, Desc: desc})
	return q
}

// Take returns a copy of q limited to n rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Client is implemented by every backend.
type Client interface {
	// Select returns the rows matching q.
	Select(ctx context.Context, q Query) ([]Record, error)
	// Insert stores rec in table and returns the stored row, including
	// generated columns such as id.
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	// Update applies changes to every row matching q and returns how many
	// rows were touched. Orders and Limit are ignored.
	Update(ctx context.Context, q Query, changes Record) (int64, error)
	// Delete removes every row matching q.
	Delete(ctx context.Context, q Query) (int64, error)
	// Upsert inserts rec or, when a row with the same conflict columns
	// exists, overwrites it. It returns the stored row.
	Upsert(ctx context.Context, table string, rec Record, conflict ...string) (Record, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrEmptyRecord       = errors.New("empty record")
	ErrUnsafeMutation    = errors.New("update or delete without filters")
	ErrUnknownTable      = errors.New("unknown table")
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// validate checks every identifier in q. Mutations must be filtered so a
// bug can never rewrite a whole table.
func (q Query) validate(mutation bool) error {
	if err := checkIdent(q.Table); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := checkIdent(f.Column); err != nil {
			return err
		}
		switch f.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("filter %s: in expects []any, got %T", f.Column, f.Value)
			}
		default:
			return fmt.Errorf("filter %s: unknown operator %q", f.Column, f.Op)
		}
	}
	for _, o := range q.Orders {
		if err := checkIdent(o.Column); err != nil {
			return err
		}
	}
	if mutation && len(q.Filters) == 0 {
		return ErrUnsafeMutation
	}
	return nil
}

func checkRecord(rec Record) error {
	if len(rec) == 0 {
		return ErrEmptyRecord
	}
	for k := range rec {
		if err := checkIdent(k); err != nil {
			return err
		}
	}
	return nil
}
