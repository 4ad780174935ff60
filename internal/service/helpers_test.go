package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"
	"estoque-vendas/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memory.Store
	ledger   StockLedger
	sales    SaleService
	comandas ComandaService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(memory.NewStore(), zap.NewNop())
}

func newFixtureWithStore(store *memory.Store, logger *zap.Logger) *fixture {
	ledger := NewStockLedger(logger)
	sales := NewSaleService(store, ledger, logger)
	return &fixture{
		store:    store,
		ledger:   ledger,
		sales:    sales,
		comandas: NewComandaService(store, sales, logger),
	}
}

func (f *fixture) product(t *testing.T, name string, price string, stock int) *domain.Product {
	t.Helper()
	now := time.Now()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		CostPrice: decimal.Zero,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) saleCount(t *testing.T) int {
	t.Helper()
	sales, err := f.store.Sales().List(context.Background(), domain.SaleFilter{})
	require.NoError(t, err)
	return len(sales)
}

func line(p *domain.Product, qty int) domain.CartLine {
	return domain.CartLine{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price}
}

// failingStore wraps a memory store and makes sale inserts fail inside transactions
type failingStore struct {
	*memory.Store
	err error
}

type failingTx struct {
	repository.Tx
	err error
}

type failingSales struct {
	repository.SaleRepository
	err error
}

func (s *failingStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Tx) error {
		return fn(&failingTx{Tx: tx, err: s.err})
	})
}

func (t *failingTx) Sales() repository.SaleRepository {
	return &failingSales{SaleRepository: t.Tx.Sales(), err: t.err}
}

func (r *failingSales) Create(ctx context.Context, sale *domain.Sale) error {
	return r.err
}

var errDiskFull = errors.New("disk full")

// racingStore commits a competing delivery of the same sale right before
// each transaction, while the transaction still reads sales as they were
// before it started. This is how a READ COMMITTED database behaves when two
// deliveries meet on the product row locks.
type racingStore struct {
	*memory.Store
	compete func()
}

type staleTx struct {
	repository.Tx
}

type staleSales struct {
	repository.SaleRepository
}

func (s *racingStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if s.compete != nil {
		compete := s.compete
		s.compete = nil
		compete()
	}
	return s.Store.WithTx(ctx, func(tx repository.Tx) error {
		return fn(&staleTx{Tx: tx})
	})
}

func (t *staleTx) Sales() repository.SaleRepository {
	return &staleSales{SaleRepository: t.Tx.Sales()}
}

func (r *staleSales) FindByOfflineID(ctx context.Context, offlineID string) (*domain.Sale, error) {
	return nil, repository.ErrSaleNotFound
}
