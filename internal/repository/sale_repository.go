package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"estoque-vendas/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	saleColumns     = `id, total, payment_method, offline_id, created_at`
	saleItemColumns = `id, sale_id, product_id, product_name, quantity, price`
)

type saleRepository struct {
	db sqlx.ExtContext
}

// NewSaleRepository creates a new instance of SaleRepository
func NewSaleRepository(db sqlx.ExtContext) SaleRepository {
	return &saleRepository{db: db}
}

// Create inserts the sale and all of its items. A reused offline id is
// reported as ErrDuplicateOfflineID; the caller must abandon the transaction.
func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	query := `
		INSERT INTO sales (id, total, payment_method, offline_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, sale.ID, sale.Total, sale.MetodoPagamento, sale.OfflineID, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOfflineID
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}

	itemQuery := `
		INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, price, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		if _, err := r.db.ExecContext(ctx, itemQuery,
			item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.Price, i,
		); err != nil {
			return fmt.Errorf("failed to create sale item: %w", err)
		}
	}

	return nil
}

func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.findOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// FindByOfflineID retrieves the sale recorded for a client offline identifier
func (r *saleRepository) FindByOfflineID(ctx context.Context, offlineID string) (*domain.Sale, error) {
	return r.findOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE offline_id = $1`, offlineID)
}

func (r *saleRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Sale, error) {
	sale := &domain.Sale{}
	if err := sqlx.GetContext(ctx, r.db, sale, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Sale{sale}); err != nil {
		return nil, err
	}
	return sale, nil
}

// List retrieves sales newest first, narrowed by the filter
func (r *saleRepository) List(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Start != nil {
		args = append(args, *filter.Start)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		conditions = append(conditions, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	sales := []*domain.Sale{}
	if err := sqlx.SelectContext(ctx, r.db, &sales, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	if err := r.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *saleRepository) attachItems(ctx context.Context, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(sales))
	byID := make(map[uuid.UUID]*domain.Sale, len(sales))
	for _, sale := range sales {
		sale.Items = []domain.SaleItem{}
		ids = append(ids, sale.ID)
		byID[sale.ID] = sale
	}

	query, args, err := sqlx.In(
		`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to build sale items query: %w", err)
	}

	items := []domain.SaleItem{}
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load sale items: %w", err)
	}

	for _, item := range items {
		if sale, ok := byID[item.SaleID]; ok {
			sale.Items = append(sale.Items, item)
		}
	}
	return nil
}
