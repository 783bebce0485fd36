package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/log"
	ports "tally/internal/sheets"
)

const defaultCacheTTL = 5 * time.Minute

type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the transaction's year is prefixed.
	SheetName string
	// CredentialsJSON wins over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// sheetIndex caches the exported ids of one sheet and its next free row.
type sheetIndex struct {
	rows      map[string]int
	nextRow   int
	expiresAt time.Time
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger

	mu                 sync.Mutex
	index              map[string]*sheetIndex
	cacheValidDuration time.Duration
}

var _ ports.TransactionExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithOptions(ctx, cfg, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds the client over explicit API options, for tests and
// alternative auth.
func NewWithOptions(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Transactions"
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetBase:          base,
		logger:             logger.WithComponent(log.ComponentSheets),
		index:              map[string]*sheetIndex{},
		cacheValidDuration: defaultCacheTTL,
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Export appends tx to "<year> <base>", columns A:G.
func (c *Client) Export(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction has no id")
	}
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, tx.Date.Year())

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.loadIndex(ctx, sheet)
	if err != nil {
		return "", err
	}
	if row, ok := idx.rows[tx.ID]; ok {
		return rowRef(sheet, row), nil
	}

	row := idx.nextRow
	rng := fmt.Sprintf("%s!A%d:G%d", sheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(tx)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		// the sheet may have moved under us
		delete(c.index, sheet)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	idx.rows[tx.ID] = row
	idx.nextRow++

	ref := rowRef(sheet, row)
	c.logger.InfoContext(ctx, "Exported transaction",
		log.FieldUserID, tx.UserID,
		log.FieldRowID, tx.ID,
		log.FieldSheetsRef, ref)
	return ref, nil
}

// must hold c.mu
func (c *Client) loadIndex(ctx context.Context, sheet string) (*sheetIndex, error) {
	if idx, ok := c.index[sheet]; ok && time.Now().Before(idx.expiresAt) {
		return idx, nil
	}
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rng, err)
	}
	idx := indexRows(resp.Values)
	idx.expiresAt = time.Now().Add(c.cacheValidDuration)
	c.index[sheet] = idx
	return idx, nil
}

// InvalidateCache forgets every cached sheet index.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = map[string]*sheetIndex{}
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:G%d", sheet, row, row)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
