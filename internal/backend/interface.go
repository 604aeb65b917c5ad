package backend

import (
	"context"

	"dailysales/internal/ledger"
)

// StoreFactory opens the ledger store for one session.
type StoreFactory func(sessionID string) ledger.Store

// CheckFunc reports whether a backing service is usable.
type CheckFunc func(ctx context.Context) error

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is everything the session layer needs from storage and messaging.
type BackendResult struct {
	NewStore StoreFactory
	// Publisher is nil when sale events are disabled.
	Publisher ledger.Publisher
	// Checks feed the readiness endpoint, keyed by dependency name.
	Checks  map[string]CheckFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
