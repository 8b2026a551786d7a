package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"journey/internal/core"
	"journey/internal/resilience"
	ports "journey/internal/sheets"

	"github.com/sony/gobreaker"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.StatementMirror = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// Service account credentials: inline JSON wins over the file path.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	cb            *gobreaker.CircuitBreaker

	mu      sync.Mutex
	sheetID *int64
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName,
		"credentials_size", len(creds))

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Extrato"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		cb:            resilience.NewCircuitBreaker("sheets-mirror", resilience.DefaultBreakerSettings()),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendRow appends tx below the last row, writing the header first on an
// empty sheet.
func (c *Client) AppendRow(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID <= 0 {
		return "", &core.ErrValidation{Field: "id", Message: "transaction id is required"}
	}

	column, err := c.readIDColumn(ctx)
	if err != nil {
		return "", err
	}
	if row := findRow(column, tx.ID); row > 0 {
		return c.a1(fmt.Sprintf("A%d:H%d", row, row)), nil
	}

	values := [][]any{ports.Row(tx)}
	if len(column) == 0 {
		values = append([][]any{headerRow()}, values...)
	}

	resp, err := breakerDo(c.cb, func() (*gsheet.AppendValuesResponse, error) {
		return c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:H"), &gsheet.ValueRange{Values: values}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
	})
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	row := len(values) + len(column)
	return c.a1(fmt.Sprintf("A%d:H%d", row, row)), nil
}

// DeleteRow removes the row holding id, shifting the rows below it up.
func (c *Client) DeleteRow(ctx context.Context, id int64) error {
	column, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	row := findRow(column, id)
	if row == 0 {
		slog.DebugContext(ctx, "Row already absent from mirror", "transaction_id", id)
		return nil
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = breakerDo(c.cb, func() (*gsheet.BatchUpdateSpreadsheetResponse, error) {
		return c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete row %d from %s: %w", row, c.sheetName, err)
	}
	return nil
}

func (c *Client) ListRowIDs(ctx context.Context) ([]int64, error) {
	column, err := c.readIDColumn(ctx)
	if err != nil {
		return nil, err
	}
	return parseIDs(column), nil
}

func (c *Client) readIDColumn(ctx context.Context) ([][]any, error) {
	rng := c.a1("A:A")
	resp, err := breakerDo(c.cb, func() (*gsheet.ValueRange, error) {
		return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// resolveSheetID looks up the numeric id of the mirror tab once.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := breakerDo(c.cb, func() (*gsheet.Spreadsheet, error) {
		return c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	})
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

// a1 qualifies rng with the quoted sheet name.
func (c *Client) a1(rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.sheetName, "'", "''"), rng)
}

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

func breakerDo[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
