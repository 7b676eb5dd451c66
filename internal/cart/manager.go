// Package cart owns cart contents. Stock is reserved at the moment an
// item enters the cart and released when it leaves, so checkout never
// has to re-check availability.
package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/stock"
	"github.com/avolkhov/online_store/internal/store"
)

var ErrValidation = errors.New("validation")

type Manager struct {
	Store *store.Store
	Stock *stock.Ledger
}

// Get returns the cart with its items.
func (m *Manager) Get(ctx context.Context, cartID uint) (*models.Cart, error) {
	var cart models.Cart
	if err := m.Store.DB.WithContext(ctx).Preload("Items").First(&cart, cartID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &cart, nil
}

// AddItem reserves qty units and merges them into the cart entry for
// the product. On a failed reservation the cart is left untouched; on a
// failed upsert the reservation is handed back.
func (m *Manager) AddItem(ctx context.Context, cartID, productID, qty uint) (*models.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	}
	if _, err := m.Get(ctx, cartID); err != nil {
		return nil, err
	}

	if err := m.Stock.Reserve(ctx, productID, qty); err != nil {
		return nil, err
	}

	if err := m.upsertItem(ctx, cartID, productID, qty); err != nil {
		if relErr := m.Stock.Release(ctx, productID, qty); relErr != nil {
			return nil, fmt.Errorf("upsert failed (%v), release failed: %w", err, relErr)
		}
		return nil, err
	}

	return m.Get(ctx, cartID)
}

func (m *Manager) upsertItem(ctx context.Context, cartID, productID, qty uint) error {
	err := m.Store.ConditionalUpdate(ctx, &models.CartItem{},
		map[string]any{"quantity": gorm.Expr("quantity + ?", qty)},
		"cart_id = ? AND product_id = ?", cartID, productID,
	)
	if !errors.Is(err, store.ErrPredicateFailed) {
		return err
	}
	err = m.Store.Create(ctx, &models.CartItem{CartID: cartID, ProductID: productID, Quantity: qty})
	if errors.Is(err, store.ErrConflict) {
		// Lost the insert race; the entry exists now, merge into it.
		return m.Store.ConditionalUpdate(ctx, &models.CartItem{},
			map[string]any{"quantity": gorm.Expr("quantity + ?", qty)},
			"cart_id = ? AND product_id = ?", cartID, productID,
		)
	}
	return err
}

// UpdateItem sets the entry for the product to newQty, reserving or
// releasing the signed difference. newQty of 0 removes the entry.
func (m *Manager) UpdateItem(ctx context.Context, cartID, productID, newQty uint) (*models.Cart, error) {
	if newQty == 0 {
		return m.RemoveItem(ctx, cartID, productID)
	}

	item, err := m.findItem(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	if newQty == item.Quantity {
		return m.Get(ctx, cartID)
	}

	if newQty > item.Quantity {
		delta := newQty - item.Quantity
		if err := m.Stock.Reserve(ctx, productID, delta); err != nil {
			return nil, err
		}
		if err := m.setQuantity(ctx, item, newQty); err != nil {
			if relErr := m.Stock.Release(ctx, productID, delta); relErr != nil {
				return nil, fmt.Errorf("update failed (%v), release failed: %w", err, relErr)
			}
			return nil, err
		}
		return m.Get(ctx, cartID)
	}

	// Shrink the entry before releasing; if the release is interrupted the
	// stock stays reserved instead of being claimable twice.
	delta := item.Quantity - newQty
	if err := m.setQuantity(ctx, item, newQty); err != nil {
		return nil, err
	}
	if err := m.Stock.Release(ctx, productID, delta); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return m.Get(ctx, cartID)
}

// RemoveItem deletes the entry and returns its full reserved quantity
// to the ledger. A product deleted mid-session releases nothing.
func (m *Manager) RemoveItem(ctx context.Context, cartID, productID uint) (*models.Cart, error) {
	item, err := m.findItem(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	if err := m.Store.Delete(ctx, &models.CartItem{}, item.ID); err != nil {
		return nil, err
	}
	if err := m.Stock.Release(ctx, productID, item.Quantity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return m.Get(ctx, cartID)
}

// Clear removes every entry, releasing each reservation.
func (m *Manager) Clear(ctx context.Context, cartID uint) (*models.Cart, error) {
	cart, err := m.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	for _, item := range cart.Items {
		if err := m.Store.Delete(ctx, &models.CartItem{}, item.ID); err != nil {
			return nil, err
		}
		if err := m.Stock.Release(ctx, item.ProductID, item.Quantity); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return m.Get(ctx, cartID)
}

func (m *Manager) findItem(ctx context.Context, cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := m.Store.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, getErr := m.Get(ctx, cartID); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("product %d not in cart: %w", productID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &item, nil
}

func (m *Manager) setQuantity(ctx context.Context, item *models.CartItem, newQty uint) error {
	// Conditioned on the quantity the delta was computed from.
	return m.Store.ConditionalUpdate(ctx, &models.CartItem{},
		map[string]any{"quantity": newQty},
		"id = ? AND quantity = ?", item.ID, item.Quantity,
	)
}
