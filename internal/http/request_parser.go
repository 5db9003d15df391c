package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pisoheroes/internal/core"
)

var errInvalidID = errors.New("invalid id")

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, defaulting
// to the month of today. Out of range months fall back to today's.
func ParseMonthParams(query url.Values, today core.Date) MonthParams {
	params := MonthParams{Year: today.Year(), Month: today.Month()}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 1900 && y < 3000 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}
	return params
}

// ParseDateValue parses a YYYY-MM-DD value; empty means today.
func ParseDateValue(v string, today core.Date) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return today, nil
	}
	return core.ParseDate(v)
}

// ParseOptionalDate parses a YYYY-MM-DD value; empty means no date.
func ParseOptionalDate(v string) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(v)
}

// ParseRange reads from/to query parameters, defaulting to the month of
// today up to today.
func ParseRange(query url.Values, today core.Date) (from, to core.Date, err error) {
	from, err = ParseDateValue(query.Get("from"), today.MonthStart())
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("from: %w", err)
	}
	to, err = ParseDateValue(query.Get("to"), today)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("to: %w", err)
	}
	if to.Before(from) {
		return core.Date{}, core.Date{}, fmt.Errorf("range ends before it starts: %w", core.ErrInvalidDate)
	}
	return from, to, nil
}

// ParseMoney parses a decimal peso amount such as "1,234.50".
func ParseMoney(v string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(v))
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// PathID reads the {id} path value.
func PathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// ParseLimit reads a positive integer query parameter capped at max.
func ParseLimit(query url.Values, key string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get(key)))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// RequestBodyParser reads a body that may be JSON or form-encoded, as sent
// by fetch calls and by plain forms respectively.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for r. A form that was already
// parsed is reused since its body is gone.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.PostForm != nil && len(r.PostForm) > 0 {
		p.formData = r.PostForm
		p.parsed = true
		return p
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// Bool reads a checkbox or JSON boolean. Unchecked checkboxes are absent.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// formBool reads a checkbox from a parsed form.
func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.PostFormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
