package domain

import (
	"time"

	"github.com/google/uuid"
)

// ComandaStatus is the lifecycle state of a running tab
type ComandaStatus string

const (
	ComandaStatusOpen      ComandaStatus = "aberta"
	ComandaStatusFinalized ComandaStatus = "finalizada"
)

// DefaultPaymentMethod is recorded when a comanda is finalized without one
const DefaultPaymentMethod = "Desconhecido"

// Comanda is a running tab for a client. It starts open and is finalized once.
type Comanda struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	ClientName  string        `json:"clientName" db:"client_name"`
	Status      ComandaStatus `json:"status" db:"status"`
	SaleID      uuid.NullUUID `json:"saleId" db:"sale_id"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	FinalizedAt *time.Time    `json:"finalizedAt,omitempty" db:"finalized_at"`
	Itens       []ComandaItem `json:"itens" db:"-"`
}

// IsOpen reports whether items can still be changed
func (c *Comanda) IsOpen() bool {
	return c.Status == ComandaStatusOpen
}

// ComandaItem is a quantity of a product on a comanda
type ComandaItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ComandaID  uuid.UUID       `json:"comandaId" db:"comanda_id"`
	ProductID  uuid.UUID       `json:"productId" db:"product_id"`
	Quantidade int             `json:"quantidade" db:"quantidade"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	Product    *ProductSummary `json:"product,omitempty" db:"-"`
}
