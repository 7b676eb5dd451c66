package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/models"
	"github.com/avolkhov/online_store/internal/mykafka"
	"github.com/avolkhov/online_store/internal/store"
	"github.com/avolkhov/online_store/internal/util"
)

type ProductHandler struct {
	Store    *store.Store
	Producer *mykafka.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.Store.Get(c.Request().Context(), uint(id), &product); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	filter := func(q *gorm.DB) *gorm.DB {
		if category := c.QueryParam("category"); category != "" {
			q = q.Where("category = ?", category)
		}
		// is_active is a projection of stock_quantity, filter on the source.
		if active := c.QueryParam("is_active"); active != "" {
			if v, err := strconv.ParseBool(active); err == nil {
				if v {
					q = q.Where("stock_quantity > 0")
				} else {
					q = q.Where("stock_quantity = 0")
				}
			}
		}
		if min := c.QueryParam("min_price"); min != "" {
			if v, err := strconv.ParseFloat(min, 64); err == nil {
				q = q.Where("price >= ?", v)
			}
		}
		if max := c.QueryParam("max_price"); max != "" {
			if v, err := strconv.ParseFloat(max, 64); err == nil {
				q = q.Where("price <= ?", v)
			}
		}
		if search := c.QueryParam("search"); search != "" {
			needle := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", needle, needle)
		}
		return q
	}

	order := "id ASC"
	switch c.QueryParam("sort_by") {
	case "price":
		order = "price"
	case "name":
		order = "name"
	}
	if order != "id ASC" && c.QueryParam("sort_order") == "desc" {
		order += " DESC"
	}

	var total int64
	if err := filter(h.Store.DB.Model(&models.Product{})).Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var items []models.Product
	if err := filter(h.Store.DB.Model(&models.Product{})).Order(order).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
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

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		Price         float64 `json:"price"`
		StockQuantity uint    `json:"stock_quantity"`
		Category      string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		return echo.NewHTTPError(http.StatusBadRequest, "name must be at least 2 characters")
	}
	if len(strings.TrimSpace(req.Description)) < 10 {
		return echo.NewHTTPError(http.StatusBadRequest, "description must be at least 10 characters")
	}
	if req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be greater than 0")
	}

	prod := models.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
	}
	if err := h.Store.Create(c.Request().Context(), &prod); err != nil {
		return HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

// UpdateProduct replaces the whole product. Validation matches create;
// omitted fields are overwritten with their zero values.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		Price         float64 `json:"price"`
		StockQuantity uint    `json:"stock_quantity"`
		Category      string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		return echo.NewHTTPError(http.StatusBadRequest, "name must be at least 2 characters")
	}
	if len(strings.TrimSpace(req.Description)) < 10 {
		return echo.NewHTTPError(http.StatusBadRequest, "description must be at least 10 characters")
	}
	if req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must be greater than 0")
	}

	return h.applyUpdate(c, uint(id), map[string]any{
		"name":           strings.TrimSpace(req.Name),
		"description":    strings.TrimSpace(req.Description),
		"price":          req.Price,
		"stock_quantity": req.StockQuantity,
		"category":       req.Category,
	})
}

// PatchProduct applies a partial update. Only the provided fields reach
// the store; stock_quantity never travels through a read-modify-write,
// so a reservation landing mid-request is not written back. is_active
// is not an input anywhere: it always follows stock_quantity.
func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name          *string  `json:"name"`
		Description   *string  `json:"description"`
		Price         *float64 `json:"price"`
		StockQuantity *uint    `json:"stock_quantity"`
		Category      *string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	set := map[string]any{}
	if req.Name != nil {
		if len(strings.TrimSpace(*req.Name)) < 2 {
			return echo.NewHTTPError(http.StatusBadRequest, "name must be at least 2 characters")
		}
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		if len(strings.TrimSpace(*req.Description)) < 10 {
			return echo.NewHTTPError(http.StatusBadRequest, "description must be at least 10 characters")
		}
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be greater than 0")
		}
		set["price"] = *req.Price
	}
	if req.StockQuantity != nil {
		// An explicit stock patch is an absolute restock.
		set["stock_quantity"] = *req.StockQuantity
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}

	return h.applyUpdate(c, uint(id), set)
}

func (h *ProductHandler) applyUpdate(c echo.Context, id uint, set map[string]any) error {
	if len(set) > 0 {
		err := h.Store.ConditionalUpdate(c.Request().Context(), &models.Product{}, set, "id = ?", id)
		if errors.Is(err, store.ErrPredicateFailed) {
			return HTTPError(store.ErrNotFound)
		}
		if err != nil {
			return HTTPError(err)
		}
	}

	var prod models.Product
	if err := h.Store.Get(c.Request().Context(), id, &prod); err != nil {
		return HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.Store.Get(c.Request().Context(), uint(id), &prod); err != nil {
		return HTTPError(err)
	}
	if err := h.Store.Delete(c.Request().Context(), &models.Product{}, uint(id)); err != nil {
		return HTTPError(err)
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
