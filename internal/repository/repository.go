package repository

import (
	"context"
	"errors"
	"time"

	"estoque-vendas/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
	ErrSaleNotFound          = errors.New("sale not found")
	ErrDuplicateOfflineID    = errors.New("sale with this offline id already exists")
	ErrComandaNotFound       = errors.New("comanda not found")
	ErrComandaItemNotFound   = errors.New("comanda item not found")
	ErrComandaNotOpen        = errors.New("comanda is not open")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	Count(ctx context.Context) (int, error)
	// LockForUpdate row-locks the given products in ascending id order until
	// the surrounding transaction ends. Unknown ids are absent from the result.
	LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	// DecrementStock subtracts quantity only while stock stays non-negative.
	// It returns false when the product cannot cover the quantity.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
}

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context) ([]*domain.Category, error)
}

// SaleRepository defines the interface for sale data access. Sales are write-once.
type SaleRepository interface {
	Create(ctx context.Context, sale *domain.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	FindByOfflineID(ctx context.Context, offlineID string) (*domain.Sale, error)
	List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error)
}

// ComandaRepository defines the interface for comanda data access
type ComandaRepository interface {
	Create(ctx context.Context, comanda *domain.Comanda) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error)
	// LockByID loads the comanda with its items and holds its row lock
	// until the surrounding transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error)
	ListOpen(ctx context.Context) ([]*domain.Comanda, error)
	AddItem(ctx context.Context, item *domain.ComandaItem) error
	UpdateItemQuantity(ctx context.Context, comandaID, itemID uuid.UUID, quantity int) (*domain.ComandaItem, error)
	RemoveItem(ctx context.Context, comandaID, itemID uuid.UUID) error
	// MarkFinalized moves an open comanda to finalized. It returns
	// ErrComandaNotOpen when the comanda was already finalized.
	MarkFinalized(ctx context.Context, id, saleID uuid.UUID, at time.Time) error
}

// Tx exposes the repositories bound to a single transaction
type Tx interface {
	Products() ProductRepository
	Categories() CategoryRepository
	Sales() SaleRepository
	Comandas() ComandaRepository
}

// Store is the persistence gateway. Repositories obtained from the Store
// itself run outside any transaction.
type Store interface {
	Tx
	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back every write otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
