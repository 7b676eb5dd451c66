package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/avolkhov/online_store/internal/models"
)

func TestCreateUserProvisionsCart(t *testing.T) {
	env := newTestEnv(t)

	load := map[string]string{
		"name":  "maria",
		"email": "maria@example.com",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/users", load)
	require.NoError(t, env.U.CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "maria", resp.Name)
	require.NotNil(t, resp.CartID)

	// The bound cart exists and is empty.
	var crt models.Cart
	require.NoError(t, env.Store.Get(context.Background(), *resp.CartID, &crt))
	require.Equal(t, resp.ID, crt.UserID)
}

func TestCreateUserRejectsShortName(t *testing.T) {
	env := newTestEnv(t)

	load := map[string]string{"name": "m", "email": "m@example.com"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/users", load)
	err := env.U.CreateUser(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	load := map[string]string{"name": "maria", "email": "maria@example.com"}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/users", load)
	require.NoError(t, env.U.CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	load["name"] = "other maria"
	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/users", load)
	err := env.U.CreateUser(c)
	require.Error(t, err)
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)

	user := models.User{Name: "oleg", Email: "oleg@example.com"}
	require.NoError(t, env.Store.Create(context.Background(), &user))

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/users/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.U.GetUser(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "oleg@example.com", resp.Email)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/users/42", nil)
	c.SetParamNames("id")
	c.SetParamValues("42")
	err := env.U.GetUser(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestDeleteUserReleasesReservedStock(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/users", map[string]string{
		"name": "maria", "email": "maria@example.com",
	})
	require.NoError(t, env.U.CreateUser(c))
	var created models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	product := models.Product{Name: "kettle", Description: "electric kettle, 1.7 litres", Price: 25.50, StockQuantity: 10}
	require.NoError(t, env.Store.Create(context.Background(), &product))
	_, err := env.U.Carts.AddItem(context.Background(), *created.CartID, product.ID, 4)
	require.NoError(t, err)

	rec, c = env.doJSONRequest(http.MethodDelete, "/api/v1/users/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.U.DeleteUser(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var p models.Product
	require.NoError(t, env.Store.Get(context.Background(), product.ID, &p))
	require.Equal(t, uint(10), p.StockQuantity)
}

func TestGetUsersPagination(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, env.Store.Create(context.Background(), &models.User{Name: "user", Email: email}))
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/users?page=1&size=2", nil)
	require.NoError(t, env.U.GetUsers(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.User  `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.EqualValues(t, 3, resp.Meta["total"])
	require.Equal(t, true, resp.Meta["has_next"])
}
