// Package worker mirrors sale.recorded events into Google Sheets as they happen.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dailysales/internal/amqp"
	"dailysales/internal/core"
	"dailysales/internal/log"
	"dailysales/internal/sheets"
)

// SyncWorker appends each recorded sale to a spreadsheet.
type SyncWorker struct {
	exporter sheets.LedgerExporter
	logger   *log.Logger

	synced  atomic.Int64
	dropped atomic.Int64
}

func NewSyncWorker(exporter sheets.LedgerExporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SyncWorker{
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSaleRecorded processes a single sale event from AMQP. Events that do
// not describe a valid sale are logged and acknowledged; retrying cannot fix them.
func (w *SyncWorker) HandleSaleRecorded(ctx context.Context, msg *amqp.SaleRecordedMessage) error {
	w.logger.DebugContext(ctx, "Processing sale event",
		log.FieldSessionID, msg.SessionID,
		log.FieldProduct, msg.Product)

	rec, err := msg.Record()
	if err != nil {
		w.dropped.Add(1)
		w.logger.WarnContext(ctx, "Dropping invalid sale event",
			log.FieldSessionID, msg.SessionID,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation)
		return nil
	}

	ref, err := w.exporter.Export(ctx, msg.SessionID, []core.SaleRecord{rec})
	if err != nil {
		return fmt.Errorf("sync sale to sheets: %w", err)
	}
	w.synced.Add(1)

	w.logger.InfoContext(ctx, "Synced sale to Google Sheets",
		log.FieldSessionID, msg.SessionID,
		log.FieldProduct, rec.Product,
		"range", ref)
	return nil
}

// Stats reports how many events were synced and dropped so far.
func (w *SyncWorker) Stats() (synced, dropped int64) {
	return w.synced.Load(), w.dropped.Load()
}

var reconnectDelay = 2 * time.Second

// Consumer is the part of the AMQP client the worker loop drives.
type Consumer interface {
	Connect(ctx context.Context, attempts int) error
	ConsumeSaleRecorded(ctx context.Context, handler amqp.SaleHandler) error
}

// Run consumes until ctx is cancelled, reconnecting whenever the broker drops
// the consumer.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, dialAttempts int) error {
	for {
		err := consumer.ConsumeSaleRecorded(ctx, w.HandleSaleRecorded)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, amqp.ErrDeliveriesClosed) {
			w.logger.ErrorContext(ctx, "Consumer stopped", log.FieldError, err)
		}
		w.logger.InfoContext(ctx, "Reconnecting to AMQP", "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
		if err := consumer.Connect(ctx, dialAttempts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reconnect: %w", err)
		}
	}
}
