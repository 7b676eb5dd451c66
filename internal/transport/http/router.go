package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avolkhov/online_store/internal/handlers"
	"github.com/avolkhov/online_store/internal/handlers/cart"
)

type Deps struct {
	DB             *gorm.DB
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *cart.CartHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	users := v1.Group("/users")
	users.POST("", d.UserHandler.CreateUser)
	users.GET("", d.UserHandler.GetUsers)
	users.GET("/:id", d.UserHandler.GetUser)
	users.DELETE("/:id", d.UserHandler.DeleteUser)
	users.POST("/:id/checkout", d.CartHandler.MakeCheckout)

	products := v1.Group("/products")
	products.POST("", d.ProductHandler.CreateProduct)
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.PUT("/:id", d.ProductHandler.UpdateProduct)
	products.PATCH("/:id", d.ProductHandler.PatchProduct)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct)

	carts := v1.Group("/carts")
	carts.GET("/:id", d.CartHandler.GetCart)
	carts.POST("/:id/items", d.CartHandler.AddItem)
	carts.PUT("/:id/items/:product_id", d.CartHandler.UpdateItem)
	carts.DELETE("/:id/items/:product_id", d.CartHandler.RemoveItem)
	carts.DELETE("/:id/items", d.CartHandler.ClearCart)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}
}
