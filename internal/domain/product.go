package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item and its on-hand stock
type Product struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Price      decimal.Decimal `json:"price" db:"price"`
	CostPrice  decimal.Decimal `json:"costPrice" db:"cost_price"`
	Stock      int             `json:"stock" db:"stock"`
	MinStock   int             `json:"minStock" db:"min_stock"`
	CategoryID uuid.NullUUID   `json:"categoryId" db:"category_id"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// BelowMinStock reports whether the product reached its reorder threshold.
func (p *Product) BelowMinStock() bool {
	return p.Stock <= p.MinStock
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ProductSummary is the slice of a product embedded in comanda items
type ProductSummary struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// StockDemand is a request to take quantity units of a product out of stock
type StockDemand struct {
	ProductID uuid.UUID
	Quantity  int
}
