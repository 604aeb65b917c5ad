package sheets

import (
	"context"

	"dailysales/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter copies a session's sales to an external spreadsheet.
	LedgerExporter interface {
		// Export appends one row per record and returns the written range.
		Export(ctx context.Context, sessionID string, records []core.SaleRecord) (ref string, err error)
	}
)
