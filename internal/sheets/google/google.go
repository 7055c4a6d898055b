package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// Config selects the spreadsheet and the service account used to write it.
// CredentialsJSON takes precedence over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	// mu serializes writes and guards ids, the cached column A of each
	// sheet indexed by row-1. A sheet is read once and then kept current
	// from the write responses.
	mu  sync.Mutex
	ids map[string][]string
}

var _ sheets.LedgerExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Extra options are appended after the credentials; when they carry their
// own authentication the service account may be omitted.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case creds != nil:
		base = append(base, goption.WithCredentialsJSON(creds))
	case len(opts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	svc, err := gsheet.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, ids: make(map[string][]string)}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", cfg.CredentialsFile)
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// AppendRecord appends the record below the last row of its sheet, writing
// the header first when the sheet is empty. A record whose id is already
// present is left alone and its existing row is returned.
func (c *Client) AppendRecord(ctx context.Context, collection store.Collection, id string, record map[string]string) (string, error) {
	sheet, err := sheets.SheetName(collection)
	if err != nil {
		return "", err
	}
	row, err := sheets.Row(collection, id, record)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.cachedIDs(ctx, sheet)
	if err != nil {
		return "", err
	}
	if n := rowOf(ids, id); n > 0 {
		slog.InfoContext(ctx, "Record already exported", "sheet", sheet, "id", id, "row", n)
		return a1(sheet, fmt.Sprintf("A%d", n)), nil
	}

	if len(ids) == 0 {
		header, _ := sheets.Header(collection)
		if err := c.update(ctx, a1(sheet, "A1"), header); err != nil {
			delete(c.ids, sheet)
			return "", fmt.Errorf("write header to %s: %w", sheet, err)
		}
		ids = []string{header[0]}
		c.ids[sheet] = ids
	}

	vr := &gsheet.ValueRange{Values: [][]any{toAny(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(sheet, "A:A"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		delete(c.ids, sheet)
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates == nil {
		delete(c.ids, sheet)
		return a1(sheet, "A:A"), nil
	}
	if n := rowFromRange(resp.Updates.UpdatedRange); n > 0 {
		for len(ids) < n {
			ids = append(ids, "")
		}
		ids[n-1] = id
		c.ids[sheet] = ids
	} else {
		delete(c.ids, sheet)
	}
	return resp.Updates.UpdatedRange, nil
}

// MarkDeleted sets the status cell of the record's row. Ids that were never
// exported are ignored.
func (c *Client) MarkDeleted(ctx context.Context, collection store.Collection, id string) error {
	sheet, err := sheets.SheetName(collection)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.cachedIDs(ctx, sheet)
	if err != nil {
		return err
	}
	n := rowOf(ids, id)
	if n == 0 {
		// Rows may have been added by another writer since the sheet was read.
		delete(c.ids, sheet)
		if ids, err = c.cachedIDs(ctx, sheet); err != nil {
			return err
		}
		n = rowOf(ids, id)
	}
	if n == 0 {
		slog.WarnContext(ctx, "Deleted record not found in sheet", "sheet", sheet, "id", id)
		return nil
	}
	if err := c.update(ctx, a1(sheet, fmt.Sprintf("B%d", n)), []string{sheets.StatusDeleted}); err != nil {
		return fmt.Errorf("mark row %d deleted in %s: %w", n, sheet, err)
	}
	return nil
}

// cachedIDs returns column A of sheet, reading it only on a cache miss.
// Callers hold c.mu.
func (c *Client) cachedIDs(ctx context.Context, sheet string) ([]string, error) {
	if ids, ok := c.ids[sheet]; ok {
		return ids, nil
	}
	ids, err := c.readIDs(ctx, sheet)
	if err != nil {
		return nil, err
	}
	c.ids[sheet] = ids
	return ids, nil
}

func (c *Client) readIDs(ctx context.Context, sheet string) ([]string, error) {
	rng := a1(sheet, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

func (c *Client) update(ctx context.Context, rng string, values []string) error {
	vr := &gsheet.ValueRange{Values: [][]any{toAny(values)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

// rowOf returns the 1-based row holding id, skipping the header, or 0.
func rowOf(ids []string, id string) int {
	for i, v := range ids {
		if i == 0 {
			continue
		}
		if v == id {
			return i + 1
		}
	}
	return 0
}

// rowFromRange returns the first row of an A1 range such as
// 'Expenses'!A5:H5, or 0 when it names none.
func rowFromRange(rng string) int {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	rng, _, _ = strings.Cut(rng, ":")
	n, err := strconv.Atoi(strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	if err != nil {
		return 0
	}
	return n
}

// a1 builds an A1 range with the sheet name quoted.
func a1(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
