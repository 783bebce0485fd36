package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"tally/internal/core"
	"tally/internal/log"
)

// fakeSheets is a minimal Values API: GET returns column A, PUT records rows.
type fakeSheets struct {
	mu      sync.Mutex
	colA    [][]any
	updates []string
	gets    int
	failPut bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	rng := r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):]
	switch r.Method {
	case http.MethodGet:
		f.gets++
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.colA})
	case http.MethodPut:
		if f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"code":500,"message":"boom"}}`)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.updates = append(f.updates, rng)
		f.colA = append(f.colA, []any{body.Values[0][0]})
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewWithOptions(context.Background(), Config{SpreadsheetID: "sid", SheetName: "Transactions"}, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func tx(id string, year int) core.Transaction {
	return core.Transaction{
		ID:          id,
		UserID:      "u1",
		AccountID:   "a1",
		Amount:      decimal.RequireFromString("-12.50"),
		Description: "Lunch",
		Category:    "Food",
		Date:        core.NewDate(year, 3, 4),
		Type:        core.Expense,
	}
}

func TestExportAppendsAfterExistingRows(t *testing.T) {
	f := &fakeSheets{colA: [][]any{{"ID"}, {"old-1"}}}
	c := newFakeClient(t, f)

	ref, err := c.Export(context.Background(), tx("t1", 2026))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "2026 Transactions!A3:G3" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(f.updates) != 1 || f.updates[0] != "2026 Transactions!A3:G3" {
		t.Fatalf("unexpected updates %v", f.updates)
	}

	ref, _ = c.Export(context.Background(), tx("t2", 2026))
	if ref != "2026 Transactions!A4:G4" {
		t.Fatalf("second export should take the next row, got %q", ref)
	}
	if f.gets != 1 {
		t.Fatalf("index should be cached, got %d reads", f.gets)
	}
}

func TestExportIsIdempotent(t *testing.T) {
	f := &fakeSheets{colA: [][]any{{"ID"}, {"t1"}}}
	c := newFakeClient(t, f)

	ref, err := c.Export(context.Background(), tx("t1", 2026))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "2026 Transactions!A2:G2" || len(f.updates) != 0 {
		t.Fatalf("existing row should be reused: ref=%q updates=%v", ref, f.updates)
	}
}

func TestExportUsesTransactionYear(t *testing.T) {
	f := &fakeSheets{}
	c := newFakeClient(t, f)
	ref, err := c.Export(context.Background(), tx("t1", 2024))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, "2024 Transactions!A1") {
		t.Fatalf("unexpected ref %q", ref)
	}
}

func TestExportFailureDropsCache(t *testing.T) {
	f := &fakeSheets{failPut: true}
	c := newFakeClient(t, f)
	if _, err := c.Export(context.Background(), tx("t1", 2026)); err == nil {
		t.Fatal("expected update failure")
	}
	f.failPut = false
	if _, err := c.Export(context.Background(), tx("t1", 2026)); err != nil {
		t.Fatal(err)
	}
	if f.gets != 2 {
		t.Fatalf("index should be re-read after a failed write, got %d reads", f.gets)
	}
}

func TestExportValidates(t *testing.T) {
	c := &Client{spreadsheetID: "sid"}

	bad := tx("t1", 2026)
	bad.Description = ""
	if _, err := c.Export(context.Background(), bad); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.Export(context.Background(), tx("", 2026)); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := c.Export(context.Background(), tx("t1", 2026)); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}, log.Discard()); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "sheets service") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "sid", CredentialsFile: "/does/not/exist.json"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Transactions", 2025, "2025 Transactions"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}
