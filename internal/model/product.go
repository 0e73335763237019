package model

import "time"

// Product is the catalogue record backing inventory. Browsing and search
// live elsewhere; this core only reads products to validate carts and to
// move stock counters.
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Variant is a purchasable configuration of a product with its own stock
// counter. Stock never goes below zero.
type Variant struct {
	ID        string `json:"id" db:"id"`
	ProductID string `json:"productId" db:"product_id"`
	Name      string `json:"name" db:"name"`
	Image     string `json:"image,omitempty" db:"image"`
	Price     int64  `json:"price" db:"price"`
	Stock     int    `json:"stock" db:"stock"`
	Sold      int    `json:"sold" db:"sold"`
}
