package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pisoheroes/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	today := core.NewDate(2025, 3, 14)

	tests := []struct {
		name  string
		query string
		want  MonthParams
	}{
		{"defaults to today", "", MonthParams{Year: 2025, Month: 3}},
		{"explicit", "year=2024&month=11", MonthParams{Year: 2024, Month: 11}},
		{"bad month falls back", "month=13", MonthParams{Year: 2025, Month: 3}},
		{"garbage year falls back", "year=abc&month=1", MonthParams{Year: 2025, Month: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseMonthParams(q, today))
		})
	}
}

func TestParseRange(t *testing.T) {
	today := core.NewDate(2025, 3, 14)

	from, to, err := ParseRange(url.Values{}, today)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", from.String())
	assert.Equal(t, "2025-03-14", to.String())

	from, to, err = ParseRange(url.Values{"from": {"2025-01-05"}, "to": {"2025-02-01"}}, today)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", from.String())
	assert.Equal(t, "2025-02-01", to.String())

	_, _, err = ParseRange(url.Values{"from": {"2025-03-10"}, "to": {"2025-03-01"}}, today)
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	_, _, err = ParseRange(url.Values{"from": {"yesterday"}}, today)
	assert.Error(t, err)
}

func TestParseDateValue(t *testing.T) {
	today := core.NewDate(2025, 3, 14)

	d, err := ParseDateValue("  ", today)
	require.NoError(t, err)
	assert.Equal(t, today, d)

	d, err = ParseDateValue("2025-02-28", today)
	require.NoError(t, err)
	assert.Equal(t, 28, d.Day())

	d, err = ParseOptionalDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney(" 1,234.50 ")
	require.NoError(t, err)
	assert.Equal(t, int64(123450), m.Cents)

	_, err = ParseMoney("abc")
	assert.Error(t, err)
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/goals/12", nil)
	req.SetPathValue("id", "12")
	id, err := PathID(req)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	req.SetPathValue("id", "-3")
	_, err = PathID(req)
	assert.ErrorIs(t, err, errInvalidID)
}

func TestParseLimit(t *testing.T) {
	q := url.Values{"limit": {"500"}}
	assert.Equal(t, 50, ParseLimit(q, "limit", 10, 50))
	assert.Equal(t, 10, ParseLimit(url.Values{}, "limit", 10, 50))
	assert.Equal(t, 10, ParseLimit(url.Values{"limit": {"0"}}, "limit", 10, 50))
	assert.Equal(t, 7, ParseLimit(url.Values{"limit": {"7"}}, "limit", 10, 50))
}

func TestRequestBodyParserJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"email_enabled": true, "push_token": " abc\u0001 ", "n": 3}`))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	assert.True(t, p.IsJSON())
	assert.True(t, p.Bool("email_enabled"))
	assert.False(t, p.Bool("push_enabled"))
	assert.Equal(t, "abc", p.Get("push_token"))
	assert.Equal(t, "3", p.Get("n"))
	assert.True(t, p.Has("n"))
	assert.False(t, p.Has("missing"))
}

func TestRequestBodyParserForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("email_enabled=on&push_token=tok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	assert.False(t, p.IsJSON())
	assert.True(t, p.Bool("email_enabled"))
	assert.Equal(t, "tok", p.Get("push_token"))
}

func TestRequestBodyParserReusesParsedForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("push_enabled=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, req.ParseForm())

	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	assert.True(t, p.Bool("push_enabled"))
}

func TestRequestBodyParserBadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":`))
	p := NewRequestBodyParser(req)
	assert.Error(t, p.Parse())
}
