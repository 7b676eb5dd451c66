// Package checkout drives the cart's end of life: stand up the
// replacement cart, repoint the binding, snapshot the items into an
// order, then retire the old cart. Stock was already reserved at add
// time, so nothing is decremented here.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/binding"
	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/store"
)

var ErrEmptyCart = errors.New("cart is empty")

type Orchestrator struct {
	Store   *store.Store
	Binding *binding.Binding
}

type Receipt struct {
	Order     models.Order       `json:"order"`
	Items     []models.OrderItem `json:"items"`
	NewCartID uint               `json:"new_cart_id"`
}

// Checkout finalizes the user's cart. Sequencing rule: the replacement
// cart exists and the binding points at it before the original cart is
// retired, so an interruption never leaves the user cartless.
func (o *Orchestrator) Checkout(ctx context.Context, userID uint) (*Receipt, error) {
	var user models.User
	if err := o.Store.Get(ctx, userID, &user); err != nil {
		return nil, err
	}
	if user.CartID == nil {
		// Provision at signup was interrupted. Recover the binding, then
		// report what the recovered cart is: empty.
		if _, err := o.Binding.Provision(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrEmptyCart
	}
	oldCartID := *user.CartID

	var cart models.Cart
	err := o.Store.DB.WithContext(ctx).Preload("Items").First(&cart, oldCartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Binding points at a retired cart: a previous checkout died between
		// rebind steps. Repair by swapping in a fresh cart.
		return nil, o.repairBinding(ctx, userID, oldCartID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	newCart := models.Cart{UserID: userID}
	if err := o.Store.Create(ctx, &newCart); err != nil {
		return nil, err
	}
	// The rebind CAS is the commit point: no order row exists until it
	// wins, so losing to a rival checkout leaves nothing to clean up
	// and a retry cannot produce a duplicate order.
	if err := o.Binding.Rebind(ctx, userID, oldCartID, newCart.ID); err != nil {
		if delErr := o.Store.Delete(ctx, &models.Cart{}, newCart.ID); delErr != nil {
			return nil, delErr
		}
		return nil, err
	}

	order, lines, err := o.snapshot(ctx, userID, cart.Items)
	if err != nil {
		return nil, err
	}
	if err := o.retireCart(ctx, oldCartID); err != nil {
		return nil, err
	}

	return &Receipt{Order: *order, Items: lines, NewCartID: newCart.ID}, nil
}

// snapshot persists the order. Items whose product vanished mid-session
// are dropped from the finalized order rather than failing checkout.
func (o *Orchestrator) snapshot(ctx context.Context, userID uint, items []models.CartItem) (*models.Order, []models.OrderItem, error) {
	var total float64
	type line struct {
		productID uint
		quantity  uint
		price     float64
	}
	var kept []line
	for _, it := range items {
		var p models.Product
		err := o.Store.Get(ctx, it.ProductID, &p)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		total += float64(it.Quantity) * p.Price
		kept = append(kept, line{productID: it.ProductID, quantity: it.Quantity, price: p.Price})
	}

	order := models.Order{
		UserID:    userID,
		Total:     total,
		Status:    "new",
		CreatedAt: time.Now().Unix(),
	}
	if err := o.Store.Create(ctx, &order); err != nil {
		return nil, nil, err
	}

	lines := make([]models.OrderItem, 0, len(kept))
	for _, l := range kept {
		oi := models.OrderItem{
			OrderID:   order.ID,
			ProductID: l.productID,
			Quantity:  l.quantity,
			Price:     l.price,
		}
		if err := o.Store.Create(ctx, &oi); err != nil {
			return nil, nil, err
		}
		lines = append(lines, oi)
	}
	return &order, lines, nil
}

func (o *Orchestrator) repairBinding(ctx context.Context, userID, deadCartID uint) error {
	newCart := models.Cart{UserID: userID}
	if err := o.Store.Create(ctx, &newCart); err != nil {
		return err
	}
	if err := o.Binding.Rebind(ctx, userID, deadCartID, newCart.ID); err != nil {
		if delErr := o.Store.Delete(ctx, &models.Cart{}, newCart.ID); delErr != nil {
			return delErr
		}
		return err
	}
	return ErrEmptyCart
}

func (o *Orchestrator) retireCart(ctx context.Context, cartID uint) error {
	err := o.Store.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return o.Store.Delete(ctx, &models.Cart{}, cartID)
}
