// Package stock owns product stock counts. Reservation and release are
// single conditional updates, so concurrent callers racing for the last
// units are resolved by the store, not by a read-then-write in Go.
package stock

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/store"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type Ledger struct {
	Store *store.Store
}

// Reserve decrements stock_quantity by qty, failing if the product does
// not hold at least qty units at write time. Exactly one of two
// concurrent reservations for the last unit succeeds.
func (l *Ledger) Reserve(ctx context.Context, productID, qty uint) error {
	err := l.Store.ConditionalUpdate(ctx, &models.Product{},
		map[string]any{"stock_quantity": gorm.Expr("stock_quantity - ?", qty)},
		"id = ? AND stock_quantity >= ?", productID, qty,
	)
	if errors.Is(err, store.ErrPredicateFailed) {
		var p models.Product
		if getErr := l.Store.Get(ctx, productID, &p); getErr != nil {
			return getErr
		}
		return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
	}
	return err
}

// Release returns qty units to the pool. The floor at zero holds by
// construction: stock only leaves through Reserve, which never lends
// more than is there.
func (l *Ledger) Release(ctx context.Context, productID, qty uint) error {
	err := l.Store.ConditionalUpdate(ctx, &models.Product{},
		map[string]any{"stock_quantity": gorm.Expr("stock_quantity + ?", qty)},
		"id = ?", productID,
	)
	if errors.Is(err, store.ErrPredicateFailed) {
		return store.ErrNotFound
	}
	return err
}
