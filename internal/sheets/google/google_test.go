package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/core"
	ports "kanakku/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets v4 endpoints the client uses on
// top of an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	deletes int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		vals := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				vals = append(vals, []any{})
				continue
			}
			vals = append(vals, []any{row[0]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": vals})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		n, err := rowOf(rng)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Values) != 1 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		for len(f.rows) < n {
			f.rows = append(f.rows, nil)
		}
		f.rows[n-1] = body.Values[0]
		_, _ = w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var body struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						StartIndex int `json:"startIndex"`
						EndIndex   int `json:"endIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Requests) != 1 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		rg := body.Requests[0].DeleteDimension.Range
		f.rows = append(f.rows[:rg.StartIndex], f.rows[rg.EndIndex:]...)
		f.deletes++
		_, _ = w.Write([]byte(`{}`))

	case r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Other","sheetId":1}},{"properties":{"title":"Ledger","sheetId":7}}]}`))

	default:
		http.NotFound(w, r)
	}
}

// rowOf extracts n from "Sheet!An:Hn".
func rowOf(rng string) (int, error) {
	i := strings.Index(rng, "!A")
	j := strings.Index(rng, ":")
	if i < 0 || j < i {
		return 0, errors.New("bad range " + rng)
	}
	return strconv.Atoi(rng[i+2 : j])
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, row := range f.rows {
		if len(row) > 0 {
			out[i], _ = row[0].(string)
		}
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, "spreadsheet", "Ledger"), fake
}

func exportRow(id, amount string) ports.ExportRow {
	return ports.ExportRow{
		TransactionID: id,
		FamilyID:      "fam",
		Date:          time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC),
		Description:   "Groceries",
		Category:      "Food: Groceries",
		Account:       "Checking",
		Type:          core.Expense,
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestClient_UpsertAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ref, err := c.Upsert(ctx, exportRow("tx-1", "-12.5"))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if ref != "Ledger!A2:H2" {
		t.Fatalf("ref = %q, want Ledger!A2:H2", ref)
	}
	if _, err := c.Upsert(ctx, exportRow("tx-2", "-3")); err != nil {
		t.Fatal(err)
	}

	ref, err = c.Upsert(ctx, exportRow("tx-1", "-20"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Ledger!A2:H2" {
		t.Fatalf("update ref = %q, want the existing row", ref)
	}

	ids := fake.ids()
	if len(ids) != 3 || ids[0] != "ID" || ids[1] != "tx-1" || ids[2] != "tx-2" {
		t.Fatalf("sheet ids = %v", ids)
	}
	fake.mu.Lock()
	amount := fake.rows[1][6]
	fake.mu.Unlock()
	if amount != "-20.00" {
		t.Fatalf("amount cell = %v, want -20.00", amount)
	}
}

func TestClient_Remove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		if _, err := c.Upsert(ctx, exportRow(id, "-1")); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Remove(ctx, "tx-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids := fake.ids()
	if len(ids) != 3 || ids[1] != "tx-1" || ids[2] != "tx-3" {
		t.Fatalf("sheet ids after remove = %v", ids)
	}

	// Removing an absent row is a no-op.
	if err := c.Remove(ctx, "tx-2"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	fake.mu.Lock()
	deletes := fake.deletes
	fake.mu.Unlock()
	if deletes != 1 {
		t.Fatalf("deletes = %d, want 1", deletes)
	}
	if c.sheetID == nil || *c.sheetID != 7 {
		t.Fatalf("sheet id not resolved from the spreadsheet properties")
	}
}

func TestClient_Errors(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Upsert(context.Background(), ports.ExportRow{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("empty id: got %v, want validation", err)
	}

	var nilSvc Client
	if _, err := nilSvc.Upsert(context.Background(), exportRow("tx", "-1")); err == nil {
		t.Fatal("expected error without a service")
	}
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without a spreadsheet id")
	}
}
