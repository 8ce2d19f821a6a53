package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/log"
	ports "ledger/internal/sheets"
)

// headerRow is written to row 1 of an empty sheet.
var headerRow = []any{"ID", "Date", "Name", "Description", "Category", "Type", "Amount", "Template"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.TransactionExporter = (*Client)(nil)

// Config names the spreadsheet and the service account credentials. Only one
// of CredentialsJSON and CredentialsFile is needed.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		logger:        log.WithComponent(log.ComponentSheets),
	}, nil
}

func credentialsJSON(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Upsert writes r on the row already holding its transaction ID, or on the
// first row after the data.
func (c *Client) Upsert(ctx context.Context, r ports.Row) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if r.TransactionID == "" {
		return "", errors.New("row without transaction id")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}

	if len(ids) == 0 {
		if err := c.writeRow(ctx, 1, headerRow); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		ids = []string{"ID"}
	}

	rowNum := findRow(ids, r.TransactionID)
	if rowNum == 0 {
		rowNum = len(ids) + 1
	}

	if err := c.writeRow(ctx, rowNum, rowValues(r)); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!A%d:H%d", c.sheetName, rowNum, rowNum)
	c.logger.DebugContext(ctx, "Transaction exported",
		log.FieldTransactionID, r.TransactionID,
		"ref", ref)
	return ref, nil
}

// Delete clears the row holding transactionID. Missing rows are not an error.
func (c *Client) Delete(ctx context.Context, transactionID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	rowNum := findRow(ids, transactionID)
	if rowNum == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.sheetName, rowNum, rowNum)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
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

func (c *Client) writeRow(ctx context.Context, rowNum int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:H%d", c.sheetName, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func firstColumn(values [][]any) []string {
	out := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out
}

// findRow returns the 1-based row holding id, or 0.
func findRow(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i + 1
		}
	}
	return 0
}

func rowValues(r ports.Row) []any {
	return []any{
		r.TransactionID,
		r.Date,
		r.Name,
		r.Description,
		r.Category,
		r.Kind,
		r.Amount.StringFixed(2),
		r.TemplateID,
	}
}
