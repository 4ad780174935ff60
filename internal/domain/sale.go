package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity the INTEGER stock and quantity columns hold
const MaxQuantity = math.MaxInt32

// MaxAmount is the largest price or total a NUMERIC(12, 2) column holds
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Sale is a finalized commercial transaction. It is never modified after creation.
type Sale struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Total           decimal.Decimal `json:"total" db:"total"`
	MetodoPagamento string          `json:"metodoPagamento" db:"payment_method"`
	OfflineID       *string         `json:"offlineId,omitempty" db:"offline_id"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	Items           []SaleItem      `json:"items" db:"-"`
}

// SaleItem is one line of a sale. Price is the unit price copied at sale time.
type SaleItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SaleID      uuid.UUID       `json:"saleId" db:"sale_id"`
	ProductID   uuid.NullUUID   `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

// Subtotal returns price times quantity for the line
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartLine is a line submitted for checkout, either from a cart or a comanda
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// SaleTotal sums price times quantity over the lines.
func SaleTotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// SaleFilter narrows sale listings. Nil bounds are open.
type SaleFilter struct {
	Start         *time.Time
	End           *time.Time
	PaymentMethod string
}
