package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return &Ledger{Store: store.New(db)}
}

func seedProduct(t *testing.T, l *Ledger, stock uint) uint {
	t.Helper()
	p := models.Product{Name: "lamp", Description: "a reading lamp, warm light", Price: 19.99, StockQuantity: stock}
	require.NoError(t, l.Store.Create(context.Background(), &p))
	return p.ID
}

func currentStock(t *testing.T, l *Ledger, id uint) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, l.Store.Get(context.Background(), id, &p))
	return p
}

func TestReserveDecrements(t *testing.T) {
	l := newTestLedger(t)
	id := seedProduct(t, l, 5)

	require.NoError(t, l.Reserve(context.Background(), id, 3))

	p := currentStock(t, l, id)
	require.Equal(t, uint(2), p.StockQuantity)
	require.True(t, p.IsActive)
}

func TestReserveInsufficientStock(t *testing.T) {
	l := newTestLedger(t)
	id := seedProduct(t, l, 2)

	err := l.Reserve(context.Background(), id, 3)
	require.ErrorIs(t, err, ErrInsufficientStock)

	p := currentStock(t, l, id)
	require.Equal(t, uint(2), p.StockQuantity)
}

func TestReserveUnknownProduct(t *testing.T) {
	l := newTestLedger(t)

	err := l.Reserve(context.Background(), 42, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReserveLastUnitDeactivates(t *testing.T) {
	l := newTestLedger(t)
	id := seedProduct(t, l, 1)

	require.NoError(t, l.Reserve(context.Background(), id, 1))

	p := currentStock(t, l, id)
	require.Equal(t, uint(0), p.StockQuantity)
	require.False(t, p.IsActive)
}

func TestReleaseRestores(t *testing.T) {
	l := newTestLedger(t)
	id := seedProduct(t, l, 1)

	require.NoError(t, l.Reserve(context.Background(), id, 1))
	require.NoError(t, l.Release(context.Background(), id, 1))

	p := currentStock(t, l, id)
	require.Equal(t, uint(1), p.StockQuantity)
	require.True(t, p.IsActive)
}

func TestReleaseUnknownProduct(t *testing.T) {
	l := newTestLedger(t)

	err := l.Release(context.Background(), 42, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	l := newTestLedger(t)
	id := seedProduct(t, l, 5)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Reserve(context.Background(), id, 1)
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 5, ok)
	require.Equal(t, 5, insufficient)

	p := currentStock(t, l, id)
	require.Equal(t, uint(0), p.StockQuantity)
	require.False(t, p.IsActive)
}
