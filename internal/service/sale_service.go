package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxOfflineIDLength matches the sales.offline_id column
const MaxOfflineIDLength = 100

// RecordSaleInput is a checkout request from a cart, a comanda or the offline queue
type RecordSaleInput struct {
	Lines         []domain.CartLine
	PaymentMethod string
	OfflineID     string
}

// RecordSaleResult carries the sale and whether it was already recorded
// under the same offline identifier.
type RecordSaleResult struct {
	Sale     *domain.Sale
	Replayed bool
}

// SaleList is a filtered sale listing with the sum of its totals
type SaleList struct {
	Sales []*domain.Sale  `json:"sales"`
	Total decimal.Decimal `json:"total"`
}

// SaleService defines the interface for sale business logic
type SaleService interface {
	RecordSale(ctx context.Context, input RecordSaleInput) (*RecordSaleResult, error)
	// RecordSaleTx records a sale inside an existing transaction. Offline
	// identifiers are not supported on this path.
	RecordSaleTx(ctx context.Context, tx repository.Tx, input RecordSaleInput) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) (*SaleList, error)
}

type saleService struct {
	store  repository.Store
	ledger StockLedger
	logger *zap.Logger
	now    func() time.Time
}

// NewSaleService creates a new instance of SaleService
func NewSaleService(store repository.Store, ledger StockLedger, logger *zap.Logger) SaleService {
	return &saleService{
		store:  store,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

func validateSaleInput(input *RecordSaleInput) error {
	if len(input.Lines) == 0 {
		return domain.NewValidationError("Itens da venda são obrigatórios")
	}
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	if input.PaymentMethod == "" {
		return domain.NewValidationError("Método de pagamento é obrigatório")
	}
	input.OfflineID = strings.TrimSpace(input.OfflineID)
	if len(input.OfflineID) > MaxOfflineIDLength {
		return domain.NewValidationError("Identificador offline muito longo")
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return domain.NewValidationError("Produto é obrigatório")
		}
		if line.Quantity <= 0 {
			return domain.NewValidationError("Quantidade deve ser maior que zero")
		}
		if line.Quantity > domain.MaxQuantity {
			return domain.NewValidationError("Quantidade muito grande")
		}
		if line.UnitPrice.IsNegative() {
			return domain.NewValidationError("Preço não pode ser negativo")
		}
		price := line.UnitPrice.Round(2)
		if price.GreaterThan(domain.MaxAmount) {
			return domain.NewValidationError("Preço muito alto")
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if total.GreaterThan(domain.MaxAmount) {
		return domain.NewValidationError("Total da venda muito alto")
	}
	return nil
}

// RecordSale validates the input, then checks idempotency, applies the stock
// ledger and stores the sale in one transaction.
func (s *saleService) RecordSale(ctx context.Context, input RecordSaleInput) (*RecordSaleResult, error) {
	if err := validateSaleInput(&input); err != nil {
		return nil, err
	}

	var result *RecordSaleResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if input.OfflineID != "" {
			existing, err := tx.Sales().FindByOfflineID(ctx, input.OfflineID)
			if err == nil {
				result = &RecordSaleResult{Sale: existing, Replayed: true}
				return nil
			}
			if !errors.Is(err, repository.ErrSaleNotFound) {
				return domain.NewPersistenceError("Erro ao verificar venda offline", err)
			}
		}

		sale, err := s.record(ctx, tx, input)
		if err != nil {
			return err
		}
		result = &RecordSaleResult{Sale: sale}
		return nil
	})

	if err != nil && input.OfflineID != "" {
		// a concurrent delivery of the same offline sale may have committed
		// while this one waited on the product locks
		existing, findErr := s.store.Sales().FindByOfflineID(ctx, input.OfflineID)
		switch {
		case findErr == nil:
			s.logger.Info("Offline sale already recorded", zap.String("offline_id", input.OfflineID))
			return &RecordSaleResult{Sale: existing, Replayed: true}, nil
		case errors.Is(err, repository.ErrDuplicateOfflineID):
			return nil, domain.NewPersistenceError("Erro ao recuperar venda offline", findErr)
		}
	}
	if err != nil {
		return nil, asDomainError(err, "Erro ao registrar venda")
	}

	if result.Replayed {
		s.logger.Info("Offline sale already recorded", zap.String("offline_id", input.OfflineID))
	} else {
		s.logger.Info("Sale recorded",
			zap.String("sale_id", result.Sale.ID.String()),
			zap.String("total", result.Sale.Total.StringFixed(2)),
			zap.String("payment_method", result.Sale.MetodoPagamento),
			zap.Int("items", len(result.Sale.Items)),
		)
	}
	return result, nil
}

func (s *saleService) RecordSaleTx(ctx context.Context, tx repository.Tx, input RecordSaleInput) (*domain.Sale, error) {
	input.OfflineID = ""
	if err := validateSaleInput(&input); err != nil {
		return nil, err
	}
	return s.record(ctx, tx, input)
}

func (s *saleService) record(ctx context.Context, tx repository.Tx, input RecordSaleInput) (*domain.Sale, error) {
	demands := make([]domain.StockDemand, 0, len(input.Lines))
	for _, line := range input.Lines {
		demands = append(demands, domain.StockDemand{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	products, err := s.ledger.Apply(ctx, tx.Products(), demands)
	if err != nil {
		return nil, err
	}

	sale := &domain.Sale{
		ID:              uuid.New(),
		MetodoPagamento: input.PaymentMethod,
		CreatedAt:       s.now().UTC(),
		Items:           make([]domain.SaleItem, 0, len(input.Lines)),
	}
	if input.OfflineID != "" {
		offlineID := input.OfflineID
		sale.OfflineID = &offlineID
	}

	for _, line := range input.Lines {
		item := domain.SaleItem{
			ID:        uuid.New(),
			SaleID:    sale.ID,
			ProductID: uuid.NullUUID{UUID: line.ProductID, Valid: true},
			Quantity:  line.Quantity,
			Price:     line.UnitPrice.Round(2),
		}
		if product, ok := products[line.ProductID]; ok {
			item.ProductName = product.Name
		}
		sale.Items = append(sale.Items, item)
	}
	sale.Total = domain.SaleTotal(sale.Items)

	if err := tx.Sales().Create(ctx, sale); err != nil {
		if errors.Is(err, repository.ErrDuplicateOfflineID) {
			return nil, err
		}
		return nil, domain.NewPersistenceError("Erro ao registrar venda", err)
	}

	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, filter domain.SaleFilter) (*SaleList, error) {
	filter.PaymentMethod = strings.TrimSpace(filter.PaymentMethod)

	sales, err := s.store.Sales().List(ctx, filter)
	if err != nil {
		return nil, domain.NewPersistenceError("Erro ao listar vendas", err)
	}

	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Total)
	}
	return &SaleList{Sales: sales, Total: total}, nil
}

// asDomainError keeps classified failures and marks the rest as persistence errors
func asDomainError(err error, message string) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewPersistenceError(message, err)
}
