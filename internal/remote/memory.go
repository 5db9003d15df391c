package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryClient keeps tables in process memory. It is used by tests and the
// "memory" data backend; data is lost on restart.
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	nextID int64
	rows   []Record
}

var _ Client = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{tables: make(map[string]*memTable)}
}

func (c *MemoryClient) table(name string) *memTable {
	t, ok := c.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		c.tables[name] = t
	}
	return t
}

func (c *MemoryClient) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(false); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[q.Table]
	if !ok {
		return nil, nil
	}
	var out []Record
	for _, row := range t.rows {
		if matches(row, q.Filters) {
			out = append(out, row.Clone())
		}
	}
	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				cmp := compare(out[i][o.Column], out[j][o.Column])
				if cmp == 0 {
					continue
				}
				if o.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c *MemoryClient) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(table, rec), nil
}

func (c *MemoryClient) insertLocked(table string, rec Record) Record {
	t := c.table(table)
	row := rec.Clone()
	if !row.Has("id") {
		row["id"] = t.nextID
	}
	if id := row.Int64("id"); id >= t.nextID {
		t.nextID = id + 1
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = Timestamp(time.Now())
	}
	t.rows = append(t.rows, row)
	return row.Clone()
}

func (c *MemoryClient) Upsert(ctx context.Context, table string, rec Record, conflict ...string) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("upsert %s: no conflict columns", table)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.table(table)
	var key []Filter
	for _, col := range conflict {
		key = append(key, Eq(col, rec[col]))
	}
	for _, row := range t.rows {
		if matches(row, key) {
			for k, v := range rec {
				row[k] = v
			}
			return row.Clone(), nil
		}
	}
	return c.insertLocked(table, rec), nil
}

func (c *MemoryClient) Update(ctx context.Context, q Query, changes Record) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	if err := checkRecord(changes); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[q.Table]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, row := range t.rows {
		if matches(row, q.Filters) {
			for k, v := range changes {
				row[k] = v
			}
			n++
		}
	}
	return n, nil
}

func (c *MemoryClient) Delete(ctx context.Context, q Query) (int64, error) {
	if err := q.validate(true); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[q.Table]
	if !ok {
		return 0, nil
	}
	kept := t.rows[:0]
	var n int64
	for _, row := range t.rows {
		if matches(row, q.Filters) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return n, nil
}

func (c *MemoryClient) Ping(context.Context) error { return nil }
func (c *MemoryClient) Close() error               { return nil }

func matches(row Record, filters []Filter) bool {
	for _, f := range filters {
		v := row[f.Column]
		switch f.Op {
		case OpIn:
			found := false
			for _, candidate := range f.Value.([]any) {
				if compare(v, candidate) == 0 && v != nil {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpEq:
			if f.Value == nil {
				if v != nil {
					return false
				}
				continue
			}
			if v == nil || compare(v, f.Value) != 0 {
				return false
			}
		case OpNeq:
			if f.Value == nil {
				if v == nil {
					return false
				}
				continue
			}
			if v == nil || compare(v, f.Value) == 0 {
				return false
			}
		default:
			// SQL semantics: comparisons with NULL are never true.
			if v == nil || f.Value == nil {
				return false
			}
			cmp := compare(v, f.Value)
			switch f.Op {
			case OpGt:
				if cmp <= 0 {
					return false
				}
			case OpGte:
				if cmp < 0 {
					return false
				}
			case OpLt:
				if cmp >= 0 {
					return false
				}
			case OpLte:
				if cmp > 0 {
					return false
				}
			}
		}
	}
	return true
}

// compare orders two column values. Numbers compare numerically, times
// chronologically and everything else by its string form. nil sorts first.
func compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return Timestamp(s)
	}
	return fmt.Sprint(v)
}
