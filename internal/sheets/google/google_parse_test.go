package google

import "testing"

func TestFindRow(t *testing.T) {
	ids := []string{"ID", "tx-1", "", "tx-2"}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "first data row", id: "tx-1", want: 2},
		{name: "after a blank row", id: "tx-2", want: 4},
		{name: "trims the lookup id", id: " tx-2 ", want: 4},
		{name: "missing", id: "tx-9", want: 0},
		{name: "empty id never matches blank rows", id: "", want: 0},
		{name: "header is not a row", id: "ID", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findRow(ids, tt.id); got != tt.want {
				t.Fatalf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}
}

func TestFirstColumn(t *testing.T) {
	values := [][]interface{}{{"ID", "Date"}, {}, {" tx-1 ", "2025-10-01"}, {42.0}}
	got := firstColumn(values)
	want := []string{"ID", "", "tx-1", "42"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRowRange(t *testing.T) {
	if got := rowRange("Ledger", 7); got != "Ledger!A7:H7" {
		t.Fatalf("rowRange = %q", got)
	}
	if len(headerRow()) != 8 {
		t.Fatalf("header has %d columns, want 8", len(headerRow()))
	}
}
