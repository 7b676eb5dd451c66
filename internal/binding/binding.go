// Package binding maintains the 1:1 user-cart relationship. The
// authority is users.cart_id (nullable, unique); it is only ever moved
// with a conditional update, never check-then-write.
package binding

import (
	"context"
	"errors"
	"fmt"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/store"
)

// ErrDuplicateBinding means the one-cart-per-user invariant was about
// to be breached. It is not recoverable here; observing it signals a
// bug or a concurrent checkout on the same user.
var ErrDuplicateBinding = errors.New("user already bound to another cart")

type Binding struct {
	Store *store.Store
}

// Provision creates an empty cart and binds it to the user. The bind
// only succeeds while the user has no cart, so a duplicate provision
// cannot silently steal the binding.
func (b *Binding) Provision(ctx context.Context, userID uint) (*models.Cart, error) {
	cart := models.Cart{UserID: userID}
	if err := b.Store.Create(ctx, &cart); err != nil {
		return nil, err
	}

	err := b.Store.ConditionalUpdate(ctx, &models.User{},
		map[string]any{"cart_id": cart.ID},
		"id = ? AND cart_id IS NULL", userID,
	)
	if errors.Is(err, store.ErrPredicateFailed) {
		// Bind refused: the user is gone or already bound. Either way the
		// fresh cart is stray, drop it.
		if delErr := b.Store.Delete(ctx, &models.Cart{}, cart.ID); delErr != nil {
			return nil, delErr
		}
		var user models.User
		if getErr := b.Store.Get(ctx, userID, &user); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("user %d: %w", userID, ErrDuplicateBinding)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Rebind repoints the user from oldCartID to newCartID in one
// compare-and-swap. A predicate failure means the binding moved under
// the caller (concurrent checkout) and must be surfaced, not patched.
func (b *Binding) Rebind(ctx context.Context, userID, oldCartID, newCartID uint) error {
	err := b.Store.ConditionalUpdate(ctx, &models.User{},
		map[string]any{"cart_id": newCartID},
		"id = ? AND cart_id = ?", userID, oldCartID,
	)
	if errors.Is(err, store.ErrPredicateFailed) {
		var user models.User
		if getErr := b.Store.Get(ctx, userID, &user); getErr != nil {
			return getErr
		}
		return fmt.Errorf("user %d: %w", userID, ErrDuplicateBinding)
	}
	return err
}
