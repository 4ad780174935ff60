package database

import (
	"context"
	"fmt"
	"time"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedProduct struct {
	name      string
	category  string
	price     string
	costPrice string
	stock     int
	minStock  int
}

var seedCatalog = []seedProduct{
	{"Cerveja Lata", "Bebidas", "7.50", "3.80", 120, 24},
	{"Refrigerante Lata", "Bebidas", "6.00", "2.90", 80, 12},
	{"Água Mineral", "Bebidas", "3.50", "1.20", 60, 12},
	{"Caipirinha", "Drinks", "18.00", "6.50", 40, 5},
	{"Porção de Fritas", "Porções", "28.00", "9.00", 30, 5},
	{"Porção de Calabresa", "Porções", "34.00", "12.00", 25, 5},
	{"Amendoim", "Petiscos", "5.00", "1.80", 50, 10},
}

// Seed fills an empty catalog with demo categories and products. It does
// nothing when products already exist.
func Seed(ctx context.Context, store repository.Store, logger *zap.Logger) error {
	count, err := store.Products().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		logger.Debug("Catalog already populated, skipping seed", zap.Int("products", count))
		return nil
	}

	return store.WithTx(ctx, func(tx repository.Tx) error {
		now := time.Now().UTC()
		categories := make(map[string]uuid.UUID)

		existing, err := tx.Categories().List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		for _, category := range existing {
			categories[category.Name] = category.ID
		}

		for _, item := range seedCatalog {
			if _, ok := categories[item.category]; ok {
				continue
			}
			category := &domain.Category{ID: uuid.New(), Name: item.category, CreatedAt: now}
			if err := tx.Categories().Create(ctx, category); err != nil {
				return fmt.Errorf("failed to seed category %q: %w", item.category, err)
			}
			categories[item.category] = category.ID
		}

		for _, item := range seedCatalog {
			product := &domain.Product{
				ID:         uuid.New(),
				Name:       item.name,
				Price:      decimal.RequireFromString(item.price),
				CostPrice:  decimal.RequireFromString(item.costPrice),
				Stock:      item.stock,
				MinStock:   item.minStock,
				CategoryID: uuid.NullUUID{UUID: categories[item.category], Valid: true},
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Products().Create(ctx, product); err != nil {
				return fmt.Errorf("failed to seed product %q: %w", item.name, err)
			}
		}

		logger.Info("Demo catalog seeded",
			zap.Int("categories", len(categories)),
			zap.Int("products", len(seedCatalog)),
		)
		return nil
	})
}
