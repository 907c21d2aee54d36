package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ports "kanakku/internal/sheets"
)

// Exporter keeps exported rows in memory, keyed by transaction id. It backs
// the export worker when no spreadsheet is configured and in tests.
type Exporter struct {
	mu      sync.Mutex
	rows    map[string]ports.ExportRow
	order   []string
	removes int
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[string]ports.ExportRow)}
}

// Upsert stores the row and returns a synthetic row reference.
func (e *Exporter) Upsert(_ context.Context, row ports.ExportRow) (string, error) {
	if row.TransactionID == "" {
		return "", fmt.Errorf("transaction id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rows[row.TransactionID]; !ok {
		e.order = append(e.order, row.TransactionID)
	}
	e.rows[row.TransactionID] = row
	return "mem:" + row.TransactionID, nil
}

func (e *Exporter) Remove(_ context.Context, transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rows[transactionID]; !ok {
		return nil
	}
	delete(e.rows, transactionID)
	for i, id := range e.order {
		if id == transactionID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.removes++
	return nil
}

// Get returns the exported row of a transaction.
func (e *Exporter) Get(transactionID string) (ports.ExportRow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.rows[transactionID]
	return row, ok
}

// Rows returns the exported rows in first-export order.
func (e *Exporter) Rows() []ports.ExportRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ports.ExportRow, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.rows[id])
	}
	return out
}

// IDs returns the exported transaction ids sorted.
func (e *Exporter) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.rows))
	for id := range e.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Removes counts removals of rows that existed.
func (e *Exporter) Removes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removes
}
