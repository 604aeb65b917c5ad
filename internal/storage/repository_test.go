package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysales/internal/core"
	"dailysales/internal/ledger"
)

var _ ledger.Store = (*SessionStore)(nil)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), MemoryDSN, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func mustRecord(t *testing.T, product string, qty int, price string) core.SaleRecord {
	t.Helper()
	rec, err := core.NewSaleRecord(product, qty, decimal.RequireFromString(price), time.Date(2025, 3, 1, 9, 30, 0, 123, time.UTC))
	require.NoError(t, err)
	return rec
}

func TestSessionStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	store := repo.ForSession("a")

	require.NoError(t, store.Append(ctx, mustRecord(t, "Milk", 2, "50")))
	require.NoError(t, store.Append(ctx, mustRecord(t, "Bread", 1, "22.50")))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Milk", got[0].Product)
	assert.Equal(t, "100.00", got[0].Revenue.StringFixed(2))
	assert.Equal(t, "Bread", got[1].Product)
	assert.True(t, got[1].Price.Equal(decimal.RequireFromString("22.5")))
	assert.True(t, got[0].RecordedAt.Equal(time.Date(2025, 3, 1, 9, 30, 0, 123, time.UTC)))
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	a, b := repo.ForSession("a"), repo.ForSession("b")

	require.NoError(t, a.Append(ctx, mustRecord(t, "Milk", 1, "50")))
	require.NoError(t, b.Append(ctx, mustRecord(t, "Tea", 3, "10")))

	ga, _ := a.List(ctx)
	gb, _ := b.List(ctx)
	require.Len(t, ga, 1)
	require.Len(t, gb, 1)
	assert.Equal(t, "Milk", ga[0].Product)
	assert.Equal(t, "Tea", gb[0].Product)

	n, err := repo.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSessionStoreCloseDeletesRows(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	a, b := repo.ForSession("a"), repo.ForSession("b")
	require.NoError(t, a.Append(ctx, mustRecord(t, "Milk", 1, "50")))
	require.NoError(t, b.Append(ctx, mustRecord(t, "Tea", 1, "10")))

	require.NoError(t, a.Close())

	ga, err := a.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ga)
	gb, _ := b.List(ctx)
	assert.Len(t, gb, 1)
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	repo := openTestRepo(t)
	err := repo.ForSession("a").Append(context.Background(), core.SaleRecord{Product: " ", Quantity: 1})
	assert.ErrorIs(t, err, core.ErrEmptyProduct)
}

func TestPurgeAndPing(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.ForSession("a").Append(ctx, mustRecord(t, "Milk", 1, "1")))

	n, err := repo.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLedgerOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	l := ledger.New("s1", repo.ForSession("s1"))

	_, err := l.AddSale(ctx, "Milk", 2, decimal.NewFromInt(50))
	require.NoError(t, err)
	total, err := l.TotalRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", total.StringFixed(2))

	require.NoError(t, l.Close())
	n, err := repo.CountSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
