// Package memory is the default ledger store: a mutex-guarded slice.
package memory

import (
	"context"
	"errors"
	"sync"

	"dailysales/internal/core"
)

var ErrClosed = errors.New("memory store closed")

type Store struct {
	mu     sync.Mutex
	items  []core.SaleRecord
	closed bool
}

func New() *Store {
	return &Store{}
}

// Append validates and stores the record.
func (s *Store) Append(_ context.Context, rec core.SaleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items = append(s.items, rec)
	return nil
}

// List returns a copy of the records in insertion order.
func (s *Store) List(_ context.Context) ([]core.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return append([]core.SaleRecord(nil), s.items...), nil
}

// Close drops the records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.closed = true
	return nil
}
