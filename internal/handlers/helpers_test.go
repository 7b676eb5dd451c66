package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/binding"
	cartmgr "github.com/avolkhov/online_store/internal/cart"
	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/stock"
	"github.com/avolkhov/online_store/internal/store"
)

type testEnv struct {
	T     *testing.T
	E     *echo.Echo
	Store *store.Store
	U     *UserHandler
	P     *ProductHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Cart{},
		&models.CartItem{}, &models.Order{}, &models.OrderItem{},
	))

	st := store.New(db)
	bnd := &binding.Binding{Store: st}
	manager := &cartmgr.Manager{Store: st, Stock: &stock.Ledger{Store: st}}

	return &testEnv{
		T:     t,
		E:     echo.New(),
		Store: st,
		U:     &UserHandler{Store: st, Binding: bnd, Carts: manager},
		P:     &ProductHandler{Store: st},
	}
}

func TestHTTPErrorMapsPredicateLossToConflict(t *testing.T) {
	// A lost conditional update is a concurrent-mutation conflict, not a
	// server fault.
	he := HTTPError(store.ErrPredicateFailed)
	require.Equal(t, http.StatusConflict, he.Code)
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}
