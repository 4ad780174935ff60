package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
)

type productRepository struct {
	run runner
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.run(func(s *state) error {
		s.products[product.ID] = *product
		return nil
	})
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var out *domain.Product
	err := r.run(func(s *state) error {
		p, ok := s.products[id]
		if !ok {
			return repository.ErrProductNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	out := []*domain.Product{}
	err := r.run(func(s *state) error {
		for _, p := range s.products {
			p := p
			out = append(out, &p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, err
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.run(func(s *state) error {
		total = len(s.products)
		return nil
	})
	return total, err
}

// LockForUpdate has nothing to lock: the transaction already holds the store.
func (r *productRepository) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	locked := make(map[uuid.UUID]*domain.Product, len(ids))
	err := r.run(func(s *state) error {
		for _, id := range repository.SortIDs(ids) {
			if p, ok := s.products[id]; ok {
				locked[id] = &p
			}
		}
		return nil
	})
	return locked, err
}

func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	var applied bool
	err := r.run(func(s *state) error {
		p, ok := s.products[id]
		if !ok || p.Stock < quantity {
			return nil
		}
		p.Stock -= quantity
		p.UpdatedAt = time.Now()
		s.products[id] = p
		applied = true
		return nil
	})
	return applied, err
}

type categoryRepository struct {
	run runner
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	return r.run(func(s *state) error {
		for _, c := range s.categories {
			if strings.EqualFold(c.Name, category.Name) {
				return repository.ErrCategoryAlreadyExists
			}
		}
		s.categories[category.ID] = *category
		return nil
	})
}

func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := []*domain.Category{}
	err := r.run(func(s *state) error {
		for _, c := range s.categories {
			c := c
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

type saleRepository struct {
	run runner
}

func copySale(sale domain.Sale) *domain.Sale {
	sale.Items = append([]domain.SaleItem{}, sale.Items...)
	if sale.OfflineID != nil {
		offlineID := *sale.OfflineID
		sale.OfflineID = &offlineID
	}
	return &sale
}

func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	return r.run(func(s *state) error {
		if sale.OfflineID != nil {
			if _, exists := s.salesByOff[*sale.OfflineID]; exists {
				return repository.ErrDuplicateOfflineID
			}
		}
		for i := range sale.Items {
			sale.Items[i].SaleID = sale.ID
		}
		stored := copySale(*sale)
		s.sales[sale.ID] = *stored
		s.saleOrder = append(s.saleOrder, sale.ID)
		if sale.OfflineID != nil {
			s.salesByOff[*sale.OfflineID] = sale.ID
		}
		return nil
	})
}

func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	var out *domain.Sale
	err := r.run(func(s *state) error {
		sale, ok := s.sales[id]
		if !ok {
			return repository.ErrSaleNotFound
		}
		out = copySale(sale)
		return nil
	})
	return out, err
}

func (r *saleRepository) FindByOfflineID(ctx context.Context, offlineID string) (*domain.Sale, error) {
	var out *domain.Sale
	err := r.run(func(s *state) error {
		id, ok := s.salesByOff[offlineID]
		if !ok {
			return repository.ErrSaleNotFound
		}
		out = copySale(s.sales[id])
		return nil
	})
	return out, err
}

func (r *saleRepository) List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	out := []*domain.Sale{}
	err := r.run(func(s *state) error {
		// newest insertions first so equal timestamps keep a stable order
		for i := len(s.saleOrder) - 1; i >= 0; i-- {
			sale := s.sales[s.saleOrder[i]]
			if filter.Start != nil && sale.CreatedAt.Before(*filter.Start) {
				continue
			}
			if filter.End != nil && sale.CreatedAt.After(*filter.End) {
				continue
			}
			if filter.PaymentMethod != "" && sale.MetodoPagamento != filter.PaymentMethod {
				continue
			}
			out = append(out, copySale(sale))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type comandaRepository struct {
	run runner
}

func (s *state) loadComanda(id uuid.UUID) (*domain.Comanda, bool) {
	comanda, ok := s.comandas[id]
	if !ok {
		return nil, false
	}
	comanda.Itens = []domain.ComandaItem{}
	for _, itemID := range s.itemsByCmd[id] {
		item := s.items[itemID]
		if p, ok := s.products[item.ProductID]; ok {
			item.Product = &domain.ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
		}
		comanda.Itens = append(comanda.Itens, item)
	}
	if comanda.FinalizedAt != nil {
		at := *comanda.FinalizedAt
		comanda.FinalizedAt = &at
	}
	return &comanda, true
}

func (r *comandaRepository) Create(ctx context.Context, comanda *domain.Comanda) error {
	return r.run(func(s *state) error {
		stored := *comanda
		stored.Itens = nil
		s.comandas[comanda.ID] = stored
		s.comandaOrder = append(s.comandaOrder, comanda.ID)
		return nil
	})
}

func (r *comandaRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error) {
	var out *domain.Comanda
	err := r.run(func(s *state) error {
		comanda, ok := s.loadComanda(id)
		if !ok {
			return repository.ErrComandaNotFound
		}
		out = comanda
		return nil
	})
	return out, err
}

func (r *comandaRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error) {
	return r.FindByID(ctx, id)
}

func (r *comandaRepository) ListOpen(ctx context.Context) ([]*domain.Comanda, error) {
	out := []*domain.Comanda{}
	err := r.run(func(s *state) error {
		for _, id := range s.comandaOrder {
			if comanda, ok := s.loadComanda(id); ok && comanda.IsOpen() {
				out = append(out, comanda)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *comandaRepository) AddItem(ctx context.Context, item *domain.ComandaItem) error {
	return r.run(func(s *state) error {
		if _, ok := s.comandas[item.ComandaID]; !ok {
			return repository.ErrComandaNotFound
		}
		if _, ok := s.products[item.ProductID]; !ok {
			return repository.ErrProductNotFound
		}
		stored := *item
		stored.Product = nil
		s.items[item.ID] = stored
		s.itemsByCmd[item.ComandaID] = append(s.itemsByCmd[item.ComandaID], item.ID)
		return nil
	})
}

func (r *comandaRepository) UpdateItemQuantity(ctx context.Context, comandaID, itemID uuid.UUID, quantity int) (*domain.ComandaItem, error) {
	var out *domain.ComandaItem
	err := r.run(func(s *state) error {
		item, ok := s.items[itemID]
		if !ok || item.ComandaID != comandaID {
			return repository.ErrComandaItemNotFound
		}
		item.Quantidade = quantity
		s.items[itemID] = item
		out = &item
		return nil
	})
	return out, err
}

func (r *comandaRepository) RemoveItem(ctx context.Context, comandaID, itemID uuid.UUID) error {
	return r.run(func(s *state) error {
		item, ok := s.items[itemID]
		if !ok || item.ComandaID != comandaID {
			return repository.ErrComandaItemNotFound
		}
		delete(s.items, itemID)
		ids := s.itemsByCmd[comandaID]
		for i, id := range ids {
			if id == itemID {
				s.itemsByCmd[comandaID] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (r *comandaRepository) MarkFinalized(ctx context.Context, id, saleID uuid.UUID, at time.Time) error {
	return r.run(func(s *state) error {
		comanda, ok := s.comandas[id]
		if !ok {
			return repository.ErrComandaNotFound
		}
		if !comanda.IsOpen() {
			return repository.ErrComandaNotOpen
		}
		comanda.Status = domain.ComandaStatusFinalized
		comanda.SaleID = uuid.NullUUID{UUID: saleID, Valid: true}
		comanda.FinalizedAt = &at
		s.comandas[id] = comanda
		return nil
	})
}
