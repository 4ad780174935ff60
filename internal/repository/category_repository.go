package repository

import (
	"context"
	"fmt"

	"estoque-vendas/internal/domain"

	"github.com/jmoiron/sqlx"
)

type categoryRepository struct {
	db sqlx.ExtContext
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db sqlx.ExtContext) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category. Names are unique.
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// List retrieves all categories
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `SELECT id, name, created_at FROM categories ORDER BY name ASC`

	categories := []*domain.Category{}
	if err := sqlx.SelectContext(ctx, r.db, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}
