// Package memory is an in-process persistence gateway. Transactions are
// serialized by a single lock and run against a copy of the data that is
// swapped in on commit, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sync"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	products     map[uuid.UUID]domain.Product
	categories   map[uuid.UUID]domain.Category
	sales        map[uuid.UUID]domain.Sale
	saleOrder    []uuid.UUID
	salesByOff   map[string]uuid.UUID
	comandas     map[uuid.UUID]domain.Comanda
	comandaOrder []uuid.UUID
	items        map[uuid.UUID]domain.ComandaItem
	itemsByCmd   map[uuid.UUID][]uuid.UUID
}

func newState() *state {
	return &state{
		products:   map[uuid.UUID]domain.Product{},
		categories: map[uuid.UUID]domain.Category{},
		sales:      map[uuid.UUID]domain.Sale{},
		salesByOff: map[string]uuid.UUID{},
		comandas:   map[uuid.UUID]domain.Comanda{},
		items:      map[uuid.UUID]domain.ComandaItem{},
		itemsByCmd: map[uuid.UUID][]uuid.UUID{},
	}
}

// clone copies every map and slice. Entity values are copied by value;
// sale items are immutable once stored so their backing arrays are shared.
func (s *state) clone() *state {
	c := &state{
		products:     make(map[uuid.UUID]domain.Product, len(s.products)),
		categories:   make(map[uuid.UUID]domain.Category, len(s.categories)),
		sales:        make(map[uuid.UUID]domain.Sale, len(s.sales)),
		saleOrder:    append([]uuid.UUID(nil), s.saleOrder...),
		salesByOff:   make(map[string]uuid.UUID, len(s.salesByOff)),
		comandas:     make(map[uuid.UUID]domain.Comanda, len(s.comandas)),
		comandaOrder: append([]uuid.UUID(nil), s.comandaOrder...),
		items:        make(map[uuid.UUID]domain.ComandaItem, len(s.items)),
		itemsByCmd:   make(map[uuid.UUID][]uuid.UUID, len(s.itemsByCmd)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.salesByOff {
		c.salesByOff[k] = v
	}
	for k, v := range s.comandas {
		c.comandas[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.itemsByCmd {
		c.itemsByCmd[k] = append([]uuid.UUID(nil), v...)
	}
	return c
}

type runner func(fn func(*state) error) error

type repositories struct {
	products   *productRepository
	categories *categoryRepository
	sales      *saleRepository
	comandas   *comandaRepository
}

func newRepositories(run runner) *repositories {
	return &repositories{
		products:   &productRepository{run: run},
		categories: &categoryRepository{run: run},
		sales:      &saleRepository{run: run},
		comandas:   &comandaRepository{run: run},
	}
}

func (r *repositories) Products() repository.ProductRepository     { return r.products }
func (r *repositories) Categories() repository.CategoryRepository { return r.categories }
func (r *repositories) Sales() repository.SaleRepository           { return r.sales }
func (r *repositories) Comandas() repository.ComandaRepository     { return r.comandas }

// Store implements repository.Store in memory
type Store struct {
	*repositories
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	s := &Store{st: newState()}
	s.repositories = newRepositories(s.run)
	return s
}

func (s *Store) run(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// WithTx holds the store lock for the whole of fn. Repositories handed to
// fn write to a private copy that replaces the live data only on success.
// Repositories of the Store itself must not be used inside fn.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	work := s.st.clone()
	tx := newRepositories(func(op func(*state) error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return op(work)
	})

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.st = work
	return nil
}
