package google

import (
	"fmt"
	"strings"
)

const headerID = "ID"

func headerRow() []any {
	return []any{headerID, "Date", "Description", "Category", "Account", "Type", "Amount", "FamilyID"}
}

// rowRange is the A1 range covering the eight export columns of row n.
func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:H%d", sheet, n, n)
}

// firstColumn flattens a values matrix to its first cell per row; empty rows
// become "" so indexes keep matching sheet rows.
func firstColumn(values [][]interface{}) []string {
	out := make([]string, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
	}
	return out
}

// findRow returns the 1-based sheet row holding id, or 0. The header row
// never matches.
func findRow(ids []string, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0
	}
	for i, v := range ids {
		if i == 0 && v == headerID {
			continue
		}
		if v == id {
			return i + 1
		}
	}
	return 0
}
