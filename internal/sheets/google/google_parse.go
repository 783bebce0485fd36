package google

import (
	"fmt"
	"strings"

	"tally/internal/core"
)

// Header is the expected first row of a transactions sheet.
var Header = []string{"ID", "Date", "Description", "Category", "Type", "Amount", "Account"}

// rowValues lays tx out as columns A:G. The amount keeps its sign so sheet
// formulas can sum a column directly.
func rowValues(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Description,
		tx.Category,
		string(tx.Type),
		tx.Amount.StringFixed(2),
		tx.AccountID,
	}
}

// indexRows maps the ids found in column A to their 1-based row and returns
// the first row after the data. Blank rows and the header are not ids.
func indexRows(values [][]any) *sheetIndex {
	idx := &sheetIndex{rows: map[string]int{}, nextRow: len(values) + 1}
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], Header[0]) {
			continue
		}
		if _, dup := idx.rows[cols[0]]; !dup {
			idx.rows[cols[0]] = i + 1
		}
	}
	return idx
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
