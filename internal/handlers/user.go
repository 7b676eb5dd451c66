package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkhov/online_store/internal/binding"
	"github.com/avolkhov/online_store/internal/cart"
	"github.com/avolkhov/online_store/internal/logging"
	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/mykafka"
	"github.com/avolkhov/online_store/internal/store"
	"github.com/avolkhov/online_store/internal/util"
)

type UserHandler struct {
	Store    *store.Store
	Binding  *binding.Binding
	Carts    *cart.Manager
	Producer *mykafka.Producer
}

func (h *UserHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// CreateUser registers the user and provisions the bound empty cart.
// The creation only counts once the binding is set; a provision failure
// rolls the user record back.
func (h *UserHandler) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_create")

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 2 {
		return echo.NewHTTPError(http.StatusBadRequest, "name must be at least 2 characters")
	}
	if !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}

	user := models.User{Name: req.Name, Email: req.Email}
	if err := h.Store.Create(ctx, &user); err != nil {
		l.Warn("user_create_failed", "error", err)
		return HTTPError(err)
	}

	crt, err := h.Binding.Provision(ctx, user.ID)
	if err != nil {
		l.Error("user_provision_failed", "userID", user.ID, "error", err)
		if delErr := h.Store.Delete(ctx, &models.User{}, user.ID); delErr != nil {
			l.Error("user_rollback_failed", "userID", user.ID, "error", delErr)
		}
		return HTTPError(err)
	}
	user.CartID = &crt.ID

	h.publish(c, map[string]any{
		"type":   "user_created",
		"userID": user.ID,
		"cartID": crt.ID,
	})

	l.Info("user_created", "userID", user.ID, "cartID", crt.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.Store.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var users []models.User
	if err := h.Store.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": users,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.Store.Get(c.Request().Context(), uint(id), &user); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser clears the cart through the manager first so every
// reservation goes back to the pool, then removes cart and user.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.Store.Get(ctx, uint(id), &user); err != nil {
		return HTTPError(err)
	}

	if user.CartID != nil {
		if _, err := h.Carts.Clear(ctx, *user.CartID); err != nil {
			return HTTPError(err)
		}
	}
	// The user goes first: a user must never be observable without a cart,
	// a cart without a user is just garbage to sweep.
	if err := h.Store.Delete(ctx, &models.User{}, user.ID); err != nil {
		return HTTPError(err)
	}
	if user.CartID != nil {
		if err := h.Store.Delete(ctx, &models.Cart{}, *user.CartID); err != nil {
			return HTTPError(err)
		}
	}

	h.publish(c, map[string]any{
		"type":   "user_deleted",
		"userID": user.ID,
	})

	return c.NoContent(http.StatusNoContent)
}
