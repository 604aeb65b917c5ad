// Package ledger holds the per-session sequence of sales and the views
// derived from it: total revenue, revenue per product and the CSV export.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dailysales/internal/core"
	"dailysales/internal/log"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("ledger closed")

const publishTimeout = 5 * time.Second

// Ledger is the ordered collection of sales for one session. It only grows.
type Ledger struct {
	mu        sync.Mutex
	sessionID string
	store     Store
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
	closed    bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sends a sale.recorded event after every append.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger.WithComponent(log.ComponentLedger)
		}
	}
}

// WithClock overrides the time source for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns an empty ledger for sessionID backed by store.
func New(sessionID string, store Store, opts ...Option) *Ledger {
	l := &Ledger{
		sessionID: sessionID,
		store:     store,
		logger:    log.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the owning session.
func (l *Ledger) SessionID() string { return l.sessionID }

// AddSale validates and appends one sale. On error the ledger is unchanged.
func (l *Ledger) AddSale(ctx context.Context, product string, quantity int, price decimal.Decimal) (core.SaleRecord, error) {
	rec, err := core.NewSaleRecord(product, quantity, price, l.now())
	if err != nil {
		return core.SaleRecord{}, err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return core.SaleRecord{}, ErrClosed
	}
	err = l.store.Append(ctx, rec)
	l.mu.Unlock()
	if err != nil {
		return core.SaleRecord{}, fmt.Errorf("append sale: %w", err)
	}

	log.NewStructuredLogger(l.logger).LogSaleRecorded(ctx, l.sessionID, rec.Product, rec.Quantity,
		rec.Price.StringFixed(2), rec.Revenue.StringFixed(2))

	if l.publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := l.publisher.PublishSaleRecorded(pctx, l.sessionID, rec); err != nil {
			l.logger.WarnContext(ctx, "Failed to publish sale event",
				log.FieldSessionID, l.sessionID,
				log.FieldProduct, rec.Product,
				log.FieldOperation, log.OpPublish,
				log.FieldError, err)
		}
	}
	return rec, nil
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records(ctx context.Context) ([]core.SaleRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	records, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return records, nil
}

// Len returns the number of records.
func (l *Ledger) Len(ctx context.Context) (int, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// TotalRevenue sums revenue over all records. Zero for an empty ledger.
func (l *Ledger) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return core.TotalRevenue(records), nil
}

// GroupedRevenueByProduct sums revenue per product in order of first appearance.
func (l *Ledger) GroupedRevenueByProduct(ctx context.Context) ([]core.ProductRevenue, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}
	return core.GroupByProduct(records), nil
}

// WriteCSV writes the ledger in export format to w.
func (l *Ledger) WriteCSV(ctx context.Context, w io.Writer) error {
	records, err := l.Records(ctx)
	if err != nil {
		return err
	}
	return WriteCSV(w, records)
}

// ToCSV returns the export as bytes.
func (l *Ledger) ToCSV(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.WriteCSV(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close tears down the backing store. Safe to call more than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.store.Close(); err != nil {
		return fmt.Errorf("close ledger store: %w", err)
	}
	return nil
}
