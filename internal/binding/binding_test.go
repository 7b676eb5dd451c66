package binding

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/store"
)

func newTestBinding(t *testing.T) *Binding {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Cart{}))
	return &Binding{Store: store.New(db)}
}

func seedUser(t *testing.T, b *Binding, email string) uint {
	t.Helper()
	u := models.User{Name: "maria", Email: email}
	require.NoError(t, b.Store.Create(context.Background(), &u))
	return u.ID
}

func TestProvisionBindsEmptyCart(t *testing.T) {
	b := newTestBinding(t)
	userID := seedUser(t, b, "maria@example.com")

	crt, err := b.Provision(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, userID, crt.UserID)

	var user models.User
	require.NoError(t, b.Store.Get(context.Background(), userID, &user))
	require.NotNil(t, user.CartID)
	require.Equal(t, crt.ID, *user.CartID)
}

func TestProvisionTwiceIsDuplicate(t *testing.T) {
	b := newTestBinding(t)
	userID := seedUser(t, b, "maria@example.com")

	_, err := b.Provision(context.Background(), userID)
	require.NoError(t, err)

	_, err = b.Provision(context.Background(), userID)
	require.ErrorIs(t, err, ErrDuplicateBinding)

	// No stray cart left behind.
	var count int64
	require.NoError(t, b.Store.DB.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProvisionUnknownUser(t *testing.T) {
	b := newTestBinding(t)

	_, err := b.Provision(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRebindSwapsBinding(t *testing.T) {
	b := newTestBinding(t)
	userID := seedUser(t, b, "maria@example.com")

	old, err := b.Provision(context.Background(), userID)
	require.NoError(t, err)

	replacement := models.Cart{UserID: userID}
	require.NoError(t, b.Store.Create(context.Background(), &replacement))

	require.NoError(t, b.Rebind(context.Background(), userID, old.ID, replacement.ID))

	var user models.User
	require.NoError(t, b.Store.Get(context.Background(), userID, &user))
	require.Equal(t, replacement.ID, *user.CartID)
}

func TestRebindStaleCartFails(t *testing.T) {
	b := newTestBinding(t)
	userID := seedUser(t, b, "maria@example.com")

	crt, err := b.Provision(context.Background(), userID)
	require.NoError(t, err)

	err = b.Rebind(context.Background(), userID, crt.ID+1, crt.ID+2)
	require.ErrorIs(t, err, ErrDuplicateBinding)

	// The binding did not move.
	var user models.User
	require.NoError(t, b.Store.Get(context.Background(), userID, &user))
	require.Equal(t, crt.ID, *user.CartID)
}

func TestRebindUnknownUser(t *testing.T) {
	b := newTestBinding(t)

	err := b.Rebind(context.Background(), 42, 1, 2)
	require.ErrorIs(t, err, store.ErrNotFound)
}
