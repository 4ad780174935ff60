package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"estoque-vendas/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	comandaColumns     = `id, client_name, status, sale_id, created_at, finalized_at`
	comandaItemColumns = `id, comanda_id, product_id, quantidade, created_at`
	comandaItemSelect  = `
		SELECT ci.id, ci.comanda_id, ci.product_id, ci.quantidade, ci.created_at,
		       p.name AS product_name, p.price AS product_price, p.stock AS product_stock
		FROM comanda_items ci
		JOIN products p ON p.id = ci.product_id
	`
)

type comandaItemRow struct {
	domain.ComandaItem
	ProductName  string          `db:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price"`
	ProductStock int             `db:"product_stock"`
}

func (row comandaItemRow) toItem() domain.ComandaItem {
	item := row.ComandaItem
	item.Product = &domain.ProductSummary{
		ID:    row.ProductID,
		Name:  row.ProductName,
		Price: row.ProductPrice,
		Stock: row.ProductStock,
	}
	return item
}

type comandaRepository struct {
	db sqlx.ExtContext
}

// NewComandaRepository creates a new instance of ComandaRepository
func NewComandaRepository(db sqlx.ExtContext) ComandaRepository {
	return &comandaRepository{db: db}
}

func (r *comandaRepository) Create(ctx context.Context, comanda *domain.Comanda) error {
	query := `
		INSERT INTO comandas (id, client_name, status, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.ExecContext(ctx, query, comanda.ID, comanda.ClientName, comanda.Status, comanda.CreatedAt); err != nil {
		return fmt.Errorf("failed to create comanda: %w", err)
	}
	return nil
}

// FindByID retrieves a comanda with its items, in any status
func (r *comandaRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error) {
	return r.findOne(ctx, `SELECT `+comandaColumns+` FROM comandas WHERE id = $1`, id)
}

func (r *comandaRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Comanda, error) {
	return r.findOne(ctx, `SELECT `+comandaColumns+` FROM comandas WHERE id = $1 FOR UPDATE`, id)
}

func (r *comandaRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Comanda, error) {
	comanda := &domain.Comanda{}
	if err := sqlx.GetContext(ctx, r.db, comanda, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComandaNotFound
		}
		return nil, fmt.Errorf("failed to find comanda: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Comanda{comanda}); err != nil {
		return nil, err
	}
	return comanda, nil
}

// ListOpen retrieves open comandas, oldest first
func (r *comandaRepository) ListOpen(ctx context.Context) ([]*domain.Comanda, error) {
	query := `SELECT ` + comandaColumns + ` FROM comandas WHERE status = $1 ORDER BY created_at ASC, id`

	comandas := []*domain.Comanda{}
	if err := sqlx.SelectContext(ctx, r.db, &comandas, query, domain.ComandaStatusOpen); err != nil {
		return nil, fmt.Errorf("failed to list open comandas: %w", err)
	}

	if err := r.attachItems(ctx, comandas); err != nil {
		return nil, err
	}
	return comandas, nil
}

func (r *comandaRepository) attachItems(ctx context.Context, comandas []*domain.Comanda) error {
	if len(comandas) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(comandas))
	byID := make(map[uuid.UUID]*domain.Comanda, len(comandas))
	for _, comanda := range comandas {
		comanda.Itens = []domain.ComandaItem{}
		ids = append(ids, comanda.ID)
		byID[comanda.ID] = comanda
	}

	query, args, err := sqlx.In(comandaItemSelect+` WHERE ci.comanda_id IN (?) ORDER BY ci.created_at, ci.id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build comanda items query: %w", err)
	}

	rows := []comandaItemRow{}
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load comanda items: %w", err)
	}

	for _, row := range rows {
		if comanda, ok := byID[row.ComandaID]; ok {
			comanda.Itens = append(comanda.Itens, row.toItem())
		}
	}
	return nil
}

func (r *comandaRepository) AddItem(ctx context.Context, item *domain.ComandaItem) error {
	query := `
		INSERT INTO comanda_items (id, comanda_id, product_id, quantidade, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, item.ID, item.ComandaID, item.ProductID, item.Quantidade, item.CreatedAt); err != nil {
		return fmt.Errorf("failed to add comanda item: %w", err)
	}
	return nil
}

// UpdateItemQuantity changes the quantity of an item that belongs to comandaID
func (r *comandaRepository) UpdateItemQuantity(ctx context.Context, comandaID, itemID uuid.UUID, quantity int) (*domain.ComandaItem, error) {
	query := `
		UPDATE comanda_items
		SET quantidade = $3
		WHERE id = $1 AND comanda_id = $2
		RETURNING ` + comandaItemColumns

	item := &domain.ComandaItem{}
	if err := sqlx.GetContext(ctx, r.db, item, query, itemID, comandaID, quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComandaItemNotFound
		}
		return nil, fmt.Errorf("failed to update comanda item: %w", err)
	}
	return item, nil
}

func (r *comandaRepository) RemoveItem(ctx context.Context, comandaID, itemID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comanda_items WHERE id = $1 AND comanda_id = $2`, itemID, comandaID)
	if err != nil {
		return fmt.Errorf("failed to remove comanda item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrComandaItemNotFound
	}
	return nil
}

func (r *comandaRepository) MarkFinalized(ctx context.Context, id, saleID uuid.UUID, at time.Time) error {
	query := `
		UPDATE comandas
		SET status = $2, sale_id = $3, finalized_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, id, domain.ComandaStatusFinalized, saleID, at, domain.ComandaStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to finalize comanda: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrComandaNotOpen
	}
	return nil
}
