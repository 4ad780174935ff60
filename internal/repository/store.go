package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

type txRepositories struct {
	products   ProductRepository
	categories CategoryRepository
	sales      SaleRepository
	comandas   ComandaRepository
}

func newTxRepositories(db sqlx.ExtContext) *txRepositories {
	return &txRepositories{
		products:   NewProductRepository(db),
		categories: NewCategoryRepository(db),
		sales:      NewSaleRepository(db),
		comandas:   NewComandaRepository(db),
	}
}

func (r *txRepositories) Products() ProductRepository     { return r.products }
func (r *txRepositories) Categories() CategoryRepository { return r.categories }
func (r *txRepositories) Sales() SaleRepository           { return r.sales }
func (r *txRepositories) Comandas() ComandaRepository     { return r.comandas }

type store struct {
	*txRepositories
	db *sqlx.DB
}

// NewStore creates the PostgreSQL persistence gateway
func NewStore(db *sqlx.DB) Store {
	return &store{txRepositories: newTxRepositories(db), db: db}
}

// WithTx runs fn inside a READ COMMITTED transaction. Row locks taken by the
// repositories are released on commit or rollback.
func (s *store) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newTxRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}
