package remote

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// clientSuite runs the same behaviour checks against every backend that
// can run without external services.
type clientSuite struct {
	suite.Suite
	newClient func(t *testing.T) Client
	c         Client
	ctx       context.Context
	userID    int64
}

func (s *clientSuite) SetupTest() {
	s.ctx = context.Background()
	s.c = s.newClient(s.T())
	u, err := s.c.Insert(s.ctx, "users", Record{"username": "juan", "email": "juan@example.com", "password_hash": "x"})
	s.Require().NoError(err)
	s.userID = u.Int64("id")
	s.Require().NotZero(s.userID)
}

func (s *clientSuite) TearDownTest() {
	s.Require().NoError(s.c.Close())
}

func (s *clientSuite) addExpense(cents int64, category, date string) Record {
	rec, err := s.c.Insert(s.ctx, "expenses", Record{
		"user_id":      s.userID,
		"amount_cents": cents,
		"category":     category,
		"date":         date,
		"notes":        "",
	})
	s.Require().NoError(err)
	return rec
}

func (s *clientSuite) TestInsertReturnsGeneratedID() {
	a := s.addExpense(1500, "Food", "2025-03-01")
	b := s.addExpense(2500, "Transport", "2025-03-02")
	s.Greater(b.Int64("id"), a.Int64("id"))
	s.Equal(int64(1500), a.Int64("amount_cents"))
	s.Equal("Food", a.String("category"))
	s.Equal("2025-03-01", a.Time("date").Format(DateLayout))
}

func (s *clientSuite) TestSelectFiltersOrderAndLimit() {
	s.addExpense(100, "Food", "2025-03-01")
	s.addExpense(200, "Food", "2025-03-05")
	s.addExpense(300, "Transport", "2025-03-05")
	s.addExpense(400, "Food", "2025-03-10")

	recs, err := s.c.Select(s.ctx, From("expenses").
		Where(Eq("user_id", s.userID), Eq("category", "Food"), Gte("date", "2025-03-02"), Lte("date", "2025-03-10")).
		OrderBy("date", true))
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(int64(400), recs[0].Int64("amount_cents"))
	s.Equal(int64(200), recs[1].Int64("amount_cents"))

	recs, err = s.c.Select(s.ctx, From("expenses").Where(In("category", "Transport", "Other")))
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(int64(300), recs[0].Int64("amount_cents"))

	recs, err = s.c.Select(s.ctx, From("expenses").
		Where(Gt("amount_cents", int64(100)), Lt("amount_cents", int64(400))).
		OrderBy("amount_cents", false))
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(int64(200), recs[0].Int64("amount_cents"))
	s.Equal(int64(300), recs[1].Int64("amount_cents"))

	recs, err = s.c.Select(s.ctx, From("expenses").OrderBy("amount_cents", false).Take(3))
	s.Require().NoError(err)
	s.Len(recs, 3)
	s.Equal(int64(100), recs[0].Int64("amount_cents"))
}

func (s *clientSuite) TestUpdateAndDelete() {
	e := s.addExpense(100, "Food", "2025-03-01")
	s.addExpense(200, "Food", "2025-03-02")

	n, err := s.c.Update(s.ctx, From("expenses").Where(Eq("id", e.Int64("id"))), Record{"amount_cents": int64(999)})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	recs, err := s.c.Select(s.ctx, From("expenses").Where(Eq("id", e.Int64("id"))))
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(int64(999), recs[0].Int64("amount_cents"))

	n, err = s.c.Delete(s.ctx, From("expenses").Where(Eq("user_id", s.userID)))
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *clientSuite) TestBooleansRoundTrip() {
	_, err := s.c.Insert(s.ctx, "budget_alerts", Record{
		"user_id":            s.userID,
		"category":           "Food",
		"amount_limit_cents": int64(100000),
		"threshold_percent":  80,
		"notify_dashboard":   true,
		"notify_email":       false,
		"notify_push":        false,
		"active":             true,
	})
	s.Require().NoError(err)

	recs, err := s.c.Select(s.ctx, From("budget_alerts").Where(Eq("user_id", s.userID), Eq("active", true)))
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.True(recs[0].Bool("notify_dashboard"))
	s.False(recs[0].Bool("notify_email"))
	s.Equal(80, recs[0].Int("threshold_percent"))
}

func (s *clientSuite) TestUpsertInsertsThenOverwrites() {
	rec, err := s.c.Upsert(s.ctx, "user_settings", Record{
		"user_id":                 s.userID,
		"monthly_allowance_cents": int64(300000),
		"updated_at":              "2025-03-01 08:00:00.000000",
	}, "user_id")
	s.Require().NoError(err)
	s.Equal(int64(300000), rec.Int64("monthly_allowance_cents"))

	rec, err = s.c.Upsert(s.ctx, "user_settings", Record{
		"user_id":                 s.userID,
		"monthly_allowance_cents": int64(450000),
		"updated_at":              "2025-03-02 08:00:00.000000",
	}, "user_id")
	s.Require().NoError(err)
	s.Equal(int64(450000), rec.Int64("monthly_allowance_cents"))

	recs, err := s.c.Select(s.ctx, From("user_settings").Where(Eq("user_id", s.userID)))
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *clientSuite) TestNullFilters() {
	_, err := s.c.Insert(s.ctx, "savings_goals", Record{
		"user_id":              s.userID,
		"name":                 "Bike",
		"target_amount_cents":  int64(500000),
		"current_amount_cents": int64(0),
		"description":          "",
		"target_date":          nil,
		"status":               "active",
	})
	s.Require().NoError(err)

	recs, err := s.c.Select(s.ctx, From("savings_goals").Where(Neq("target_date", nil)))
	s.Require().NoError(err)
	s.Empty(recs)

	recs, err = s.c.Select(s.ctx, From("savings_goals").Where(Eq("target_date", nil)))
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *clientSuite) TestRejectsUnsafeStatements() {
	_, err := s.c.Delete(s.ctx, From("expenses"))
	s.ErrorIs(err, ErrUnsafeMutation)

	_, err = s.c.Select(s.ctx, From("expenses; DROP TABLE users"))
	s.ErrorIs(err, ErrInvalidIdentifier)

	_, err = s.c.Insert(s.ctx, "expenses", Record{})
	s.ErrorIs(err, ErrEmptyRecord)
}

func TestMemoryClient(t *testing.T) {
	suite.Run(t, &clientSuite{newClient: func(t *testing.T) Client {
		return NewMemoryClient()
	}})
}

func TestSQLiteClient(t *testing.T) {
	suite.Run(t, &clientSuite{newClient: func(t *testing.T) Client {
		path := filepath.Join(t.TempDir(), "remote.db")
		require.NoError(t, MigrateSQLite(path))
		c, err := NewSQLiteClient(context.Background(), path)
		require.NoError(t, err)
		return c
	}})
}

func TestBuildSelectPostgresPlaceholders(t *testing.T) {
	sql, args := buildSelect(postgresDialect{}, From("expenses").
		Where(Eq("user_id", int64(7)), Gte("date", "2025-01-01"), In("category", "Food", "Bills")).
		OrderBy("date", true).Take(10))
	assert.Equal(t, "SELECT * FROM expenses WHERE user_id = $1 AND date >= $2 AND category IN ($3, $4) ORDER BY date DESC LIMIT 10", sql)
	assert.Equal(t, []any{int64(7), "2025-01-01", "Food", "Bills"}, args)
}

func TestBuildUpsert(t *testing.T) {
	sql, args := buildUpsert(sqliteDialect{}, "user_settings",
		Record{"user_id": int64(1), "monthly_allowance_cents": int64(100)}, []string{"user_id"})
	assert.Equal(t, "INSERT INTO user_settings (monthly_allowance_cents, user_id) VALUES (?, ?) ON CONFLICT (user_id) DO UPDATE SET monthly_allowance_cents = excluded.monthly_allowance_cents RETURNING *", sql)
	assert.Equal(t, []any{int64(100), int64(1)}, args)
}

func TestRecordAccessorsTolerateDriverTypes(t *testing.T) {
	r := Record{
		"a": int32(5),
		"b": []byte("12"),
		"c": float64(3),
		"d": int64(1),
		"e": "2025-04-01",
		"f": []byte("hello"),
	}
	assert.Equal(t, int64(5), r.Int64("a"))
	assert.Equal(t, int64(12), r.Int64("b"))
	assert.Equal(t, int64(3), r.Int64("c"))
	assert.True(t, r.Bool("d"))
	assert.Equal(t, 2025, r.Time("e").Year())
	assert.Equal(t, "hello", r.String("f"))
	assert.Nil(t, r.TimePtr("missing"))
}
