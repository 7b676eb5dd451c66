package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avolkhov/online_store/internal/binding"
	"github.com/avolkhov/online_store/internal/cart"
	"github.com/avolkhov/online_store/internal/checkout"
	"github.com/avolkhov/online_store/internal/stock"
	"github.com/avolkhov/online_store/internal/store"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorResponse(c echo.Context, code int, err error) error {
	return c.JSON(code, Response{
		Status:  "error",
		Message: err.Error(),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// HTTPError maps the core error taxonomy onto transport codes.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, cart.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, binding.ErrDuplicateBinding),
		// A surfaced predicate loss means a concurrent mutation won the
		// conditional update, not a server fault.
		errors.Is(err, store.ErrPredicateFailed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
