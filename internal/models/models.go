package models

import (
	"gorm.io/gorm"
)

type User struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"not null"                 json:"name"`
	Email string `gorm:"unique;not null"          json:"email"`
	// CartID is the binding authority: one cart per user, enforced by the
	// unique index. Nullable so that rebinding can CAS between cart ids.
	CartID *uint `gorm:"uniqueIndex" json:"cart_id"`
}

type Product struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name          string  `gorm:"not null"                  json:"name"`
	Description   string  `gorm:"not null"                  json:"description"`
	Price         float64 `gorm:"not null"                  json:"price"`
	StockQuantity uint    `gorm:"not null;default:0"        json:"stock_quantity"`
	Category      string  `json:"category,omitempty"`
	// IsActive is never stored: it is recomputed from StockQuantity on every
	// read so the flag cannot drift.
	IsActive bool `gorm:"-:all" json:"is_active"`
}

func (p *Product) AfterFind(*gorm.DB) error {
	p.IsActive = p.StockQuantity > 0
	return nil
}

func (p *Product) AfterCreate(*gorm.DB) error {
	p.IsActive = p.StockQuantity > 0
	return nil
}

type Cart struct {
	ID     uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint       `gorm:"index;not null"           json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID"        json:"items"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                              json:"-"`
	CartID    uint `gorm:"not null;uniqueIndex:idx_cart_product"   json:"-"`
	ProductID uint `gorm:"not null;uniqueIndex:idx_cart_product"   json:"product_id"`
	Quantity  uint `gorm:"not null;check:quantity > 0"             json:"quantity"`
}

type Order struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint    `gorm:"index;not null"           json:"user_id"`
	Total     float64 `gorm:"not null"                 json:"total"`
	Status    string  `gorm:"not null"                 json:"status"`
	CreatedAt int64   `gorm:"not null"                 json:"created_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"not null"       json:"product_id"`
	Quantity  uint    `gorm:"not null"       json:"quantity"`
	Price     float64 `gorm:"not null"       json:"price"`
}
