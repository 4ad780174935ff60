package service

import (
	"context"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockLedger validates and applies inventory decrements. It must run inside
// the transaction that records the sale so that both commit or neither does.
type StockLedger interface {
	// Apply takes every demand out of stock or none of them. It returns the
	// affected products with their stock after the decrement.
	Apply(ctx context.Context, products repository.ProductRepository, demands []domain.StockDemand) (map[uuid.UUID]*domain.Product, error)
}

type stockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a new instance of StockLedger
func NewStockLedger(logger *zap.Logger) StockLedger {
	return &stockLedger{logger: logger}
}

func (l *stockLedger) Apply(ctx context.Context, products repository.ProductRepository, demands []domain.StockDemand) (map[uuid.UUID]*domain.Product, error) {
	if len(demands) == 0 {
		return nil, domain.NewValidationError("Itens da venda são obrigatórios")
	}

	// several lines may reference the same product
	merged := make(map[uuid.UUID]int, len(demands))
	order := make([]uuid.UUID, 0, len(demands))
	for _, demand := range demands {
		if demand.ProductID == uuid.Nil {
			return nil, domain.NewValidationError("Produto é obrigatório")
		}
		if demand.Quantity <= 0 {
			return nil, domain.NewValidationError("Quantidade deve ser maior que zero")
		}
		if demand.Quantity > domain.MaxQuantity-merged[demand.ProductID] {
			return nil, domain.NewValidationError("Quantidade muito grande")
		}
		if _, seen := merged[demand.ProductID]; !seen {
			order = append(order, demand.ProductID)
		}
		merged[demand.ProductID] += demand.Quantity
	}

	locked, err := products.LockForUpdate(ctx, order)
	if err != nil {
		return nil, domain.NewPersistenceError("Erro ao consultar estoque", err)
	}

	var short []string
	for _, id := range order {
		product, ok := locked[id]
		if !ok {
			return nil, domain.NewNotFoundError("Produto não encontrado: " + id.String())
		}
		if product.Stock < merged[id] {
			short = append(short, product.Name)
		}
	}
	if len(short) > 0 {
		return nil, domain.NewInsufficientStockError(short...)
	}

	for _, id := range repository.SortIDs(order) {
		product := locked[id]
		applied, err := products.DecrementStock(ctx, id, merged[id])
		if err != nil {
			return nil, domain.NewPersistenceError("Erro ao atualizar estoque", err)
		}
		if !applied {
			// the row changed under us; the transaction is abandoned by the caller
			return nil, domain.NewInsufficientStockError(product.Name)
		}
		product.Stock -= merged[id]

		if product.BelowMinStock() {
			l.logger.Warn("Product stock at or below minimum",
				zap.String("product_id", id.String()),
				zap.String("product", product.Name),
				zap.Int("stock", product.Stock),
				zap.Int("min_stock", product.MinStock),
			)
		}
	}

	return locked, nil
}
