package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"estoque-vendas/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, price, cost_price, stock, min_stock, category_id, created_at, updated_at`

type productRepository struct {
	db sqlx.ExtContext
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db sqlx.ExtContext) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, price, cost_price, stock, min_stock, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.CostPrice,
		product.Stock,
		product.MinStock,
		product.CategoryID,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product := &domain.Product{}
	if err := sqlx.GetContext(ctx, r.db, product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves all products ordered by name
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name ASC`

	products := []*domain.Product{}
	if err := sqlx.SelectContext(ctx, r.db, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// LockForUpdate takes row locks in ascending id order so concurrent sales
// touching overlapping products cannot deadlock.
func (r *productRepository) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	locked := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	sorted := SortIDs(ids)
	query, args, err := sqlx.In(
		`SELECT `+productColumns+` FROM products WHERE id IN (?) ORDER BY id FOR UPDATE`,
		sorted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build lock query: %w", err)
	}

	products := []*domain.Product{}
	if err := sqlx.SelectContext(ctx, r.db, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	for _, product := range products {
		locked[product.ID] = product
	}
	return locked, nil
}

// DecrementStock only applies when the row can cover quantity. Zero rows
// affected, or the stock check constraint firing, means insufficient stock.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1
	`

	result, err := r.db.ExecContext(ctx, query, quantity, id)
	if err != nil {
		if isCheckViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// SortIDs returns a sorted, de-duplicated copy of ids in PostgreSQL uuid order
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	sorted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}
