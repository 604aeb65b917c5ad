package ledger

import (
	"context"

	"dailysales/internal/core"
)

// Ports for the ledger's backing storage and outbound events.
type (
	// Store keeps one session's records in insertion order.
	Store interface {
		Append(ctx context.Context, rec core.SaleRecord) error
		List(ctx context.Context) ([]core.SaleRecord, error)
		// Close releases the records. The store is unusable afterwards.
		Close() error
	}

	// Publisher announces recorded sales to other systems.
	Publisher interface {
		PublishSaleRecorded(ctx context.Context, sessionID string, rec core.SaleRecord) error
	}
)
