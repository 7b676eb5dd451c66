package cart

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	cartmgr "github.com/avolkhov/online_store/internal/cart"
	"github.com/avolkhov/online_store/internal/checkout"
	"github.com/avolkhov/online_store/internal/handlers"
	"github.com/avolkhov/online_store/internal/logging"
	"github.com/avolkhov/online_store/internal/mykafka"
)

type CartHandler struct {
	Manager  *cartmgr.Manager
	Checkout *checkout.Orchestrator
	Producer *mykafka.Producer
}

func (h *CartHandler) GetCart(c echo.Context) error {
	cartID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	crt, err := h.Manager.Get(c.Request().Context(), cartID)
	if err != nil {
		return handlers.HTTPError(err)
	}
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	cartID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Manager.AddItem(c.Request().Context(), cartID, req.ProductID, req.Quantity)
	if err != nil {
		return handlers.HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"cartID":    cartID,
		"productID": req.ProductID,
		"quantity":  req.Quantity,
	})
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	cartID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	productID, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Manager.UpdateItem(c.Request().Context(), cartID, productID, req.Quantity)
	if err != nil {
		return handlers.HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":         "cart_item_updated",
		"cartID":       cartID,
		"productID":    productID,
		"new_quantity": req.Quantity,
	})
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	cartID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	productID, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	crt, err := h.Manager.RemoveItem(c.Request().Context(), cartID, productID)
	if err != nil {
		return handlers.HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"cartID":    cartID,
		"productID": productID,
	})
	return c.JSON(http.StatusOK, crt)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	cartID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	crt, err := h.Manager.Clear(c.Request().Context(), cartID)
	if err != nil {
		return handlers.HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"cartID": cartID,
	})
	return c.JSON(http.StatusOK, crt)
}

// MakeCheckout finalizes the user's current cart and hands back the
// receipt together with the replacement cart id.
func (h *CartHandler) MakeCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart_checkout")

	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	receipt, err := h.Checkout.Checkout(ctx, userID)
	if err != nil {
		l.Warn("checkout_failed", "userID", userID, "error", err)
		return handlers.HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "checkout_completed",
		"userID":    userID,
		"orderID":   receipt.Order.ID,
		"total":     receipt.Order.Total,
		"newCartID": receipt.NewCartID,
	})

	l.Info("checkout_completed", "userID", userID, "orderID", receipt.Order.ID)
	return c.JSON(http.StatusOK, receipt)
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}
