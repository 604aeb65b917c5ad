// Package storage is the SQLite-backed ledger store. The database is scratch
// space: rows belong to live sessions and are deleted when a session ends.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"dailysales/internal/core"
	"dailysales/internal/log"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the whole database inside the process.
const MemoryDSN = ":memory:"

const teardownTimeout = 5 * time.Second

type Repository struct {
	db     *sqlx.DB
	logger *log.Logger
}

type saleRow struct {
	ID         int64  `db:"id"`
	SessionID  string `db:"session_id"`
	Product    string `db:"product"`
	Quantity   int    `db:"quantity"`
	Price      string `db:"price"`
	Revenue    string `db:"revenue"`
	RecordedAt string `db:"recorded_at"`
}

// Open connects to dsn, applies migrations and removes rows left by a previous run.
func Open(ctx context.Context, dsn string, logger *log.Logger) (*Repository, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if isFilePath(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: an in-memory database dies with the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &Repository{db: db, logger: logger.WithComponent(log.ComponentStorage)}

	purged, err := repo.Purge(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo.logger.InfoContext(ctx, "SQLite ledger store ready",
		"dsn", dsn,
		"purged_rows", purged)

	return repo, nil
}

func isFilePath(dsn string) bool {
	return dsn != MemoryDSN && !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, "mode=memory")
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Purge deletes every row.
func (r *Repository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, fmt.Errorf("purge sales: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountSessions returns how many sessions currently own rows.
func (r *Repository) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(DISTINCT session_id) FROM sales`); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ForSession returns a store that only sees rows owned by sessionID.
func (r *Repository) ForSession(sessionID string) *SessionStore {
	return &SessionStore{repo: r, sessionID: sessionID}
}

func (r *Repository) appendSale(ctx context.Context, sessionID string, rec core.SaleRecord) (int64, error) {
	row := saleRow{
		SessionID:  sessionID,
		Product:    rec.Product,
		Quantity:   rec.Quantity,
		Price:      rec.Price.String(),
		Revenue:    rec.Revenue.String(),
		RecordedAt: rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sales (session_id, product, quantity, price, revenue, recorded_at)
		VALUES (:session_id, :product, :quantity, :price, :revenue, :recorded_at)`, row)
	if err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read sale id: %w", err)
	}
	return id, nil
}

func (r *Repository) listSales(ctx context.Context, sessionID string) ([]core.SaleRecord, error) {
	var rows []saleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, product, quantity, price, revenue, recorded_at
		FROM sales
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}

	out := make([]core.SaleRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("decode sale %d: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repository) deleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session sales: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (row saleRow) toRecord() (core.SaleRecord, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return core.SaleRecord{}, fmt.Errorf("price: %w", err)
	}
	revenue, err := decimal.NewFromString(row.Revenue)
	if err != nil {
		return core.SaleRecord{}, fmt.Errorf("revenue: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, row.RecordedAt)
	if err != nil {
		return core.SaleRecord{}, fmt.Errorf("recorded_at: %w", err)
	}
	return core.SaleRecord{
		Product:    row.Product,
		Quantity:   row.Quantity,
		Price:      price,
		Revenue:    revenue,
		RecordedAt: at,
	}, nil
}

// SessionStore is the ledger store for one session.
type SessionStore struct {
	repo      *Repository
	sessionID string
}

// Append implements ledger.Store
func (s *SessionStore) Append(ctx context.Context, rec core.SaleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	id, err := s.repo.appendSale(ctx, s.sessionID, rec)
	if err != nil {
		return err
	}
	s.repo.logger.DebugContext(ctx, "Sale saved to SQLite",
		"id", id,
		log.FieldSessionID, s.sessionID,
		log.FieldProduct, rec.Product)
	return nil
}

// List implements ledger.Store
func (s *SessionStore) List(ctx context.Context) ([]core.SaleRecord, error) {
	return s.repo.listSales(ctx, s.sessionID)
}

// Close deletes the session's rows.
func (s *SessionStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	n, err := s.repo.deleteSession(ctx, s.sessionID)
	if err != nil {
		return err
	}
	s.repo.logger.DebugContext(ctx, "Session rows deleted",
		log.FieldSessionID, s.sessionID,
		log.FieldRecords, n)
	return nil
}
