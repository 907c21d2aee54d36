// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, amounts, dates and the year/month query used by reports.

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
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// decodeJSON reads one JSON object into dst. Unknown fields, trailing data
// and oversized bodies are validation failures.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "http.decode"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validationf(op, "request body is required")
		case errors.As(err, &tooLarge):
			return core.Validationf(op, "request body exceeds %d bytes", tooLarge.Limit)
		default:
			return core.Validationf(op, "invalid request body: %v", err)
		}
	}
	if dec.More() {
		return core.Validationf(op, "request body must contain a single JSON object")
	}
	return nil
}

// amountField accepts an amount typed as a JSON string ("12,50") or number.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string")
	}
	*a = amountField(n.String())
	return nil
}

func (a amountField) parse() (decimal.Decimal, error) {
	return core.ParseAmount(string(a))
}

// parseDay parses a YYYY-MM-DD date at midnight in loc. Empty input yields
// the zero time.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, core.Validationf("http.parse_date", "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// parseYearMonth reads year and month from the query, defaulting to the
// current month in loc.
func parseYearMonth(query url.Values, loc *time.Location) (int, time.Month, error) {
	const op = "http.parse_month"
	now := time.Now().In(loc)
	year, month := now.Year(), int(now.Month())

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, core.Validationf(op, "invalid year %q", v)
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, core.Validationf(op, "invalid month %q: must be between 1 and 12", v)
		}
		month = m
	}
	return year, time.Month(month), nil
}

// parseVersion reads the optional expected version from the query; absent
// means "any version".
func parseVersion(query url.Values) (int64, error) {
	v := strings.TrimSpace(query.Get("version"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, core.Validationf("http.parse_version", "invalid version %q", v)
	}
	return n, nil
}

// optionalString sanitizes a present string field and leaves nil alone.
func optionalString(p *string) *string {
	if p == nil {
		return nil
	}
	s := sanitizeInput(*p)
	return &s
}
