// Package offline keeps sales made while the API is unreachable in a local
// SQLite queue and delivers them once connectivity returns. Delivery relies
// on the server recording each offline id at most once.
package offline

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleLine is one line of a queued sale, in the wire format of POST /api/sales
type SaleLine struct {
	ID    uuid.UUID       `json:"id"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// SalePayload is a sale as the PDV submits it
type SalePayload struct {
	Items           []SaleLine `json:"items"`
	MetodoPagamento string     `json:"metodoPagamento"`
	OfflineID       string     `json:"offlineId,omitempty"`
}

var (
	ErrEmptySale          = errors.New("sale has no items")
	ErrMissingPayment     = errors.New("sale has no payment method")
	ErrMissingOfflineID   = errors.New("queued sale needs an offline id")
	ErrSaleAlreadyQueued  = errors.New("sale with this offline id is already queued")
	ErrPendingNotFound    = errors.New("pending sale not found")
	ErrInvalidLineQtyOrID = errors.New("sale line needs a product id and a positive quantity")
)

// Validate rejects payloads the server would refuse for sure
func (p SalePayload) Validate() error {
	if len(p.Items) == 0 {
		return ErrEmptySale
	}
	if strings.TrimSpace(p.MetodoPagamento) == "" {
		return ErrMissingPayment
	}
	for _, line := range p.Items {
		if line.ID == uuid.Nil || line.Qty <= 0 {
			return ErrInvalidLineQtyOrID
		}
	}
	return nil
}

// NewOfflineID returns a fresh client-generated sale identifier
func NewOfflineID() string {
	return uuid.NewString()
}
