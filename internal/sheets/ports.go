// Package sheets mirrors persisted transactions into an external spreadsheet.
package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends a transaction to the spreadsheet of its year.
	// Exporting the same transaction id twice returns the existing row reference.
	TransactionExporter interface {
		Export(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
