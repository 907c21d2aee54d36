package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"kanakku/internal/core"
	ports "kanakku/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors ledger transactions into one sheet of a spreadsheet. Row 1
// holds the header; every other row is one transaction keyed by column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes the read-then-write sequences on the sheet.
	mu sync.Mutex
	// sheetID is the numeric grid id, resolved on first delete.
	sheetID *int64
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// Options configures New. One of CredentialsJSON or CredentialsFile is
// required; GOOGLE_APPLICATION_CREDENTIALS is consulted when both are empty.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates an export client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Upsert overwrites the row whose column A equals the transaction id, or
// appends a new row when there is none. It returns the A1 range written.
func (c *Client) Upsert(ctx context.Context, row ports.ExportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.TransactionID == "" {
		return "", core.Validationf("sheets.upsert", "transaction id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		if err := c.writeRow(ctx, 1, headerRow()); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		ids = []string{headerID}
	}

	n := findRow(ids, row.TransactionID)
	if n == 0 {
		n = len(ids) + 1
	}
	if err := c.writeRow(ctx, n, row.Values()); err != nil {
		return "", err
	}
	return rowRange(c.sheetName, n), nil
}

// Remove deletes the row of the transaction. A missing row is not an error.
func (c *Client) Remove(ctx context.Context, transactionID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := findRow(ids, transactionID)
	if n == 0 {
		slog.DebugContext(ctx, "Row already absent from sheet", "transaction_id", transactionID)
		return nil
	}
	gridID, err := c.gridID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         gridID,
					Dimension:       "ROWS",
					StartIndex:      int64(n - 1),
					EndIndex:        int64(n),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", n, c.sheetName, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return firstColumn(resp.Values), nil
}

func (c *Client) writeRow(ctx context.Context, n int, values []any) error {
	rng := rowRange(c.sheetName, n)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) gridID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, sh := range resp.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
