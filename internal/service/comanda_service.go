package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FinalizeResult is the finalized comanda and the sale it produced
type FinalizeResult struct {
	Comanda *domain.Comanda
	Sale    *domain.Sale
}

// ComandaService defines the interface for the comanda lifecycle
type ComandaService interface {
	Create(ctx context.Context, clientName string) (*domain.Comanda, error)
	ListOpen(ctx context.Context) ([]*domain.Comanda, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Comanda, error)
	AddItem(ctx context.Context, comandaID, productID uuid.UUID, quantity int) (*domain.ComandaItem, error)
	UpdateItem(ctx context.Context, comandaID, itemID uuid.UUID, quantity int) (*domain.ComandaItem, error)
	RemoveItem(ctx context.Context, comandaID, itemID uuid.UUID) error
	// Finalize converts the comanda into a sale at current product prices.
	// On any failure the comanda stays open and unchanged.
	Finalize(ctx context.Context, comandaID uuid.UUID, paymentMethod string) (*FinalizeResult, error)
}

type comandaService struct {
	store  repository.Store
	sales  SaleService
	logger *zap.Logger
	now    func() time.Time
}

// NewComandaService creates a new instance of ComandaService
func NewComandaService(store repository.Store, sales SaleService, logger *zap.Logger) ComandaService {
	return &comandaService{
		store:  store,
		sales:  sales,
		logger: logger,
		now:    time.Now,
	}
}

func (s *comandaService) Create(ctx context.Context, clientName string) (*domain.Comanda, error) {
	comanda := &domain.Comanda{
		ID:         uuid.New(),
		ClientName: strings.TrimSpace(clientName),
		Status:     domain.ComandaStatusOpen,
		CreatedAt:  s.now().UTC(),
		Itens:      []domain.ComandaItem{},
	}

	if err := s.store.Comandas().Create(ctx, comanda); err != nil {
		return nil, domain.NewPersistenceError("Erro ao criar comanda", err)
	}

	s.logger.Info("Comanda opened", zap.String("comanda_id", comanda.ID.String()), zap.String("client", comanda.ClientName))
	return comanda, nil
}

func (s *comandaService) ListOpen(ctx context.Context) ([]*domain.Comanda, error) {
	comandas, err := s.store.Comandas().ListOpen(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("Erro ao listar comandas", err)
	}
	return comandas, nil
}

func (s *comandaService) Get(ctx context.Context, id uuid.UUID) (*domain.Comanda, error) {
	comanda, err := s.store.Comandas().FindByID(ctx, id)
	if err != nil {
		return nil, mapComandaError(err, "Erro ao buscar comanda")
	}
	return comanda, nil
}

// lockOpen loads the comanda under lock and rejects anything but an open one
func lockOpen(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.Comanda, error) {
	comanda, err := tx.Comandas().LockByID(ctx, id)
	if err != nil {
		return nil, mapComandaError(err, "Erro ao buscar comanda")
	}
	if !comanda.IsOpen() {
		return nil, domain.NewInvalidStateError("Comanda já finalizada")
	}
	return comanda, nil
}

func (s *comandaService) AddItem(ctx context.Context, comandaID, productID uuid.UUID, quantity int) (*domain.ComandaItem, error) {
	if productID == uuid.Nil {
		return nil, domain.NewValidationError("Produto é obrigatório")
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("Quantidade deve ser maior que zero")
	}
	if quantity > domain.MaxQuantity {
		return nil, domain.NewValidationError("Quantidade muito grande")
	}

	var item *domain.ComandaItem
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := lockOpen(ctx, tx, comandaID); err != nil {
			return err
		}

		product, err := tx.Products().FindByID(ctx, productID)
		if err != nil {
			return mapComandaError(err, "Erro ao buscar produto")
		}

		item = &domain.ComandaItem{
			ID:         uuid.New(),
			ComandaID:  comandaID,
			ProductID:  productID,
			Quantidade: quantity,
			CreatedAt:  s.now().UTC(),
			Product: &domain.ProductSummary{
				ID:    product.ID,
				Name:  product.Name,
				Price: product.Price,
				Stock: product.Stock,
			},
		}
		if err := tx.Comandas().AddItem(ctx, item); err != nil {
			return mapComandaError(err, "Erro ao adicionar item")
		}
		return nil
	})
	if err != nil {
		return nil, asDomainError(err, "Erro ao adicionar item")
	}
	return item, nil
}

func (s *comandaService) UpdateItem(ctx context.Context, comandaID, itemID uuid.UUID, quantity int) (*domain.ComandaItem, error) {
	if itemID == uuid.Nil {
		return nil, domain.NewValidationError("Item é obrigatório")
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("Quantidade deve ser maior que zero")
	}
	if quantity > domain.MaxQuantity {
		return nil, domain.NewValidationError("Quantidade muito grande")
	}

	var item *domain.ComandaItem
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := lockOpen(ctx, tx, comandaID); err != nil {
			return err
		}

		updated, err := tx.Comandas().UpdateItemQuantity(ctx, comandaID, itemID, quantity)
		if err != nil {
			return mapComandaError(err, "Erro ao atualizar item")
		}
		item = updated
		return nil
	})
	if err != nil {
		return nil, asDomainError(err, "Erro ao atualizar item")
	}
	return item, nil
}

func (s *comandaService) RemoveItem(ctx context.Context, comandaID, itemID uuid.UUID) error {
	if itemID == uuid.Nil {
		return domain.NewValidationError("Item é obrigatório")
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := lockOpen(ctx, tx, comandaID); err != nil {
			return err
		}
		if err := tx.Comandas().RemoveItem(ctx, comandaID, itemID); err != nil {
			return mapComandaError(err, "Erro ao remover item")
		}
		return nil
	})
	if err != nil {
		return asDomainError(err, "Erro ao remover item")
	}
	return nil
}

func (s *comandaService) Finalize(ctx context.Context, comandaID uuid.UUID, paymentMethod string) (*FinalizeResult, error) {
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}

	var result *FinalizeResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		comanda, err := lockOpen(ctx, tx, comandaID)
		if err != nil {
			return err
		}
		if len(comanda.Itens) == 0 {
			return domain.NewEmptyComandaError()
		}

		lines := make([]domain.CartLine, 0, len(comanda.Itens))
		for _, item := range comanda.Itens {
			if item.Product == nil {
				return domain.NewNotFoundError("Produto não encontrado: " + item.ProductID.String())
			}
			lines = append(lines, domain.CartLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantidade,
				UnitPrice: item.Product.Price,
			})
		}

		sale, err := s.sales.RecordSaleTx(ctx, tx, RecordSaleInput{Lines: lines, PaymentMethod: paymentMethod})
		if err != nil {
			return err
		}

		finalizedAt := s.now().UTC()
		if err := tx.Comandas().MarkFinalized(ctx, comanda.ID, sale.ID, finalizedAt); err != nil {
			return mapComandaError(err, "Erro ao finalizar comanda")
		}

		comanda.Status = domain.ComandaStatusFinalized
		comanda.SaleID = uuid.NullUUID{UUID: sale.ID, Valid: true}
		comanda.FinalizedAt = &finalizedAt
		result = &FinalizeResult{Comanda: comanda, Sale: sale}
		return nil
	})
	if err != nil {
		return nil, asDomainError(err, "Erro ao finalizar comanda")
	}

	s.logger.Info("Comanda finalized",
		zap.String("comanda_id", result.Comanda.ID.String()),
		zap.String("sale_id", result.Sale.ID.String()),
		zap.String("total", result.Sale.Total.StringFixed(2)),
	)
	return result, nil
}

func mapComandaError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrComandaNotFound):
		return domain.NewNotFoundError("Comanda não encontrada")
	case errors.Is(err, repository.ErrComandaItemNotFound):
		return domain.NewNotFoundError("Item da comanda não encontrado")
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.NewNotFoundError("Produto não encontrado")
	case errors.Is(err, repository.ErrComandaNotOpen):
		return domain.NewInvalidStateError("Comanda já finalizada")
	default:
		return asDomainError(err, message)
	}
}
