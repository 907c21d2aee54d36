package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"validation", core.Validationf("op", "amount is required"), http.StatusUnprocessableEntity, "validation", "amount is required"},
		{"not found", core.NotFoundf("op", "no such account"), http.StatusNotFound, "not_found", "no such account"},
		{"conflict", core.Conflict("op", errors.New("stale")), http.StatusConflict, "conflict", "document changed concurrently, reload and resubmit"},
		{"authorization", core.Unauthorizedf("op", "owners only"), http.StatusForbidden, "authorization", "owners only"},
		{"untyped", errors.New("disk on fire"), http.StatusInternalServerError, "unknown", "internal error"},
		{"classified", core.Classify("op", errors.New("dial tcp: refused")), http.StatusInternalServerError, "unknown", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("content type = %q", ct)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if string(body.Error.Kind) != tt.wantKind || body.Error.Message != tt.wantMsg {
				t.Fatalf("body = %+v", body.Error)
			}
			if strings.Contains(rec.Body.String(), "disk on fire") || strings.Contains(rec.Body.String(), "refused") {
				t.Fatal("internal cause leaked to the client")
			}
		})
	}
}

func TestTransactionView(t *testing.T) {
	tx := core.Transaction{
		ID:          "tx-1",
		AccountID:   "acc-1",
		Amount:      decimal.RequireFromString("-12.5"),
		Type:        core.Expense,
		Category:    "Food: Restaurants",
		Subcategory: "Restaurants",
		Date:        time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
		Version:     2,
	}
	view := newChangeView(ledger.Change{
		Transaction: tx,
		Accounts:    []core.Account{{ID: "acc-1", Name: "Joint", Type: core.CreditCard, Balance: decimal.RequireFromString("-12.5")}},
	}, time.UTC)

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"amount":"-12.50"`,
		`"date":"2025-10-03"`,
		`"type":"Credit Card"`,
		`"balance":"-12.50"`,
		`"version":2`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("%s missing %s", raw, want)
		}
	}
	if strings.Contains(string(raw), "goalId") {
		t.Errorf("empty optional references should be omitted: %s", raw)
	}
}

func TestDayUsesReportingLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// Stored instants come back from SQL in UTC.
	stored := time.Date(2025, 10, 31, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		loc  *time.Location
		want string
	}{
		{"utc", stored, time.UTC, "2025-10-31"},
		{"ahead of utc", stored, ist, "2025-11-01"},
		{"nil keeps the value's zone", stored, nil, "2025-10-31"},
		{"zero", time.Time{}, ist, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := day(tt.t, tt.loc); got != tt.want {
				t.Fatalf("day = %q, want %q", got, tt.want)
			}
		})
	}

	goal := newGoalView(core.Goal{ID: "g", TargetDate: stored}, ist)
	event := newEventView(core.Event{ID: "e", EventDate: stored}, ist)
	if goal.TargetDate != "2025-11-01" || event.EventDate != "2025-11-01" {
		t.Fatalf("goal %s, event %s", goal.TargetDate, event.EventDate)
	}
}

func TestReconcileView(t *testing.T) {
	view := newReconcileView(ledger.Report{
		Accounts:     1,
		Transactions: 2,
		Discrepancies: []ledger.Discrepancy{{
			AccountID: "acc-1",
			Stored:    decimal.RequireFromString("10"),
			Computed:  decimal.RequireFromString("7.5"),
		}},
	})
	if view.Consistent {
		t.Fatal("report with a discrepancy is not consistent")
	}
	if view.Discrepancies[0].Computed != "7.50" || view.Orphans == nil || view.SignViolations == nil {
		t.Fatalf("view = %+v", view)
	}
}
