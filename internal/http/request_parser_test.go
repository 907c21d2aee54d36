package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"kanakku/internal/core"
)

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantYear  int
		wantMonth time.Month
		wantErr   bool
	}{
		{"explicit", "year=2025&month=10", 2025, time.October, false},
		{"padded", "year=+2024&month=%202", 2024, time.February, false},
		{"month out of range", "year=2025&month=13", 0, 0, true},
		{"zero month", "month=0", 0, 0, true},
		{"non numeric year", "year=abc", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			year, month, err := parseYearMonth(q, time.UTC)
			if tt.wantErr {
				if core.KindOf(err) != core.KindValidation {
					t.Fatalf("err = %v, want validation", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if year != tt.wantYear || month != tt.wantMonth {
				t.Fatalf("got %d-%d", year, month)
			}
		})
	}

	t.Run("defaults to the current month", func(t *testing.T) {
		loc := time.FixedZone("UTC+14", 14*3600)
		year, month, err := parseYearMonth(url.Values{}, loc)
		if err != nil {
			t.Fatal(err)
		}
		now := time.Now().In(loc)
		if year != now.Year() || month != now.Month() {
			t.Fatalf("got %d-%d, want %d-%d", year, month, now.Year(), now.Month())
		}
	})
}

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got, err := parseDay(" 2025-10-03 ", loc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 10, 3, 0, 0, 0, 0, loc)) {
		t.Fatalf("got %v", got)
	}

	if got, err := parseDay("", loc); err != nil || !got.IsZero() {
		t.Fatalf("empty = %v, %v", got, err)
	}
	if _, err := parseDay("2025-02-30", loc); core.KindOf(err) != core.KindValidation {
		t.Fatalf("invalid day err = %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		query   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"version=3", 3, false},
		{"version=-1", 0, true},
		{"version=x", 0, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseVersion(q)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseVersion(%q) = %d, %v", tt.query, got, err)
		}
	}
}

func TestAmountField(t *testing.T) {
	tests := []struct {
		body    string
		want    string
		wantErr bool
	}{
		{`{"amount": "12,50"}`, "12.5", false},
		{`{"amount": 12.345}`, "12.35", false},
		{`{"amount": "0"}`, "", true},
		{`{"amount": "-3"}`, "", true},
		{`{"amount": null}`, "", true},
		{`{"amount": true}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req struct {
				Amount amountField `json:"amount"`
			}
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				if !tt.wantErr {
					t.Fatal(err)
				}
				return
			}
			got, err := req.Amount.parse()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsed %s", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Joint"}`, false},
		{"unknown field", `{"name":"Joint","x":1}`, true},
		{"trailing object", `{"name":"a"}{"name":"b"}`, true},
		{"empty", ``, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if tt.wantErr {
				if core.KindOf(err) != core.KindValidation {
					t.Fatalf("err = %v, want validation", err)
				}
				return
			}
			if err != nil || p.Name != "Joint" {
				t.Fatalf("decoded %+v, %v", p, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Lunch\x00 with\x07 team\t "); got != "Lunch with team" {
		t.Fatalf("got %q", got)
	}
	if got := optionalString(nil); got != nil {
		t.Fatal("nil should stay nil")
	}
	empty := "  "
	if got := optionalString(&empty); got == nil || *got != "" {
		t.Fatalf("blank should become an empty string, got %v", got)
	}
}
