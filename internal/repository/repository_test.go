package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"estoque-vendas/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

var productRowColumns = []string{"id", "name", "price", "cost_price", "stock", "min_stock", "category_id", "created_at", "updated_at"}

func TestProductRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, price, .* FROM products WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(productRowColumns).
				AddRow(id.String(), "Cerveja", "7.50", "4.10", 12, 3, nil, now, now))

		product, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, product.ID)
		assert.Equal(t, "Cerveja", product.Name)
		assert.True(t, decimal.RequireFromString("7.50").Equal(product.Price))
		assert.Equal(t, 12, product.Stock)
		assert.False(t, product.CategoryID.Valid)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM products WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(productRowColumns))

		_, err := repo.FindByID(ctx, id)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_LockForUpdateOrdersIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`)).
		WithArgs(a, b).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(a.String(), "A", "1.00", "0.50", 1, 0, nil, now, now).
			AddRow(b.String(), "B", "2.00", "1.00", 2, 0, nil, now, now))

	locked, err := repo.LockForUpdate(context.Background(), []uuid.UUID{b, a, b})
	require.NoError(t, err)
	assert.Len(t, locked, 2)
	assert.Equal(t, "A", locked[a].Name)
	assert.Equal(t, "B", locked[b].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	id := uuid.New()
	query := regexp.QuoteMeta(`SET stock = stock - $1`) + `\s+WHERE id = \$2 AND stock >= \$1`

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(3, id).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.DecrementStock(ctx, id, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NotEnoughStock", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(30, id).WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.DecrementStock(ctx, id, 30)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CheckConstraint", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(5, id).WillReturnError(&pgconn.PgError{Code: pgCheckViolation})

		ok, err := repo.DecrementStock(ctx, id, 5)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(1, id).WillReturnError(errors.New("connection reset"))

		_, err := repo.DecrementStock(ctx, id, 1)
		assert.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCategoryRepository(db)
	category := &domain.Category{ID: uuid.New(), Name: "Bebidas", CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO categories`).
		WithArgs(category.ID, category.Name, category.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), category)
	assert.ErrorIs(t, err, ErrCategoryAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newSale() *domain.Sale {
	offlineID := "abc-1"
	productID := uuid.New()
	return &domain.Sale{
		ID:              uuid.New(),
		Total:           decimal.RequireFromString("30"),
		MetodoPagamento: "Pix",
		OfflineID:       &offlineID,
		CreatedAt:       time.Now(),
		Items: []domain.SaleItem{{
			ID:          uuid.New(),
			ProductID:   uuid.NullUUID{UUID: productID, Valid: true},
			ProductName: "Porção",
			Quantity:    3,
			Price:       decimal.RequireFromString("10"),
		}},
	}
}

func TestSaleRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSaleRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		sale := newSale()
		item := sale.Items[0]

		mock.ExpectExec(`INSERT INTO sales`).
			WithArgs(sale.ID, sale.Total, "Pix", "abc-1", sale.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO sale_items`).
			WithArgs(item.ID, sale.ID, item.ProductID, "Porção", 3, item.Price, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, sale))
		assert.Equal(t, sale.ID, sale.Items[0].SaleID)
	})

	t.Run("DuplicateOfflineID", func(t *testing.T) {
		sale := newSale()

		mock.ExpectExec(`INSERT INTO sales`).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "sales_offline_id_key"})

		err := repo.Create(ctx, sale)
		assert.ErrorIs(t, err, ErrDuplicateOfflineID)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaleRepository_FindByOfflineIDLoadsItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSaleRepository(db)
	saleID := uuid.New()
	productID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM sales WHERE offline_id = \$1`).
		WithArgs("abc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total", "payment_method", "offline_id", "created_at"}).
			AddRow(saleID.String(), "30.00", "Pix", "abc-1", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sale_items WHERE sale_id IN ($1) ORDER BY sale_id, position`)).
		WithArgs(saleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sale_id", "product_id", "product_name", "quantity", "price"}).
			AddRow(uuid.NewString(), saleID.String(), productID.String(), "Porção", 3, "10.00"))

	sale, err := repo.FindByOfflineID(context.Background(), "abc-1")
	require.NoError(t, err)
	require.NotNil(t, sale.OfflineID)
	assert.Equal(t, "abc-1", *sale.OfflineID)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, productID, sale.Items[0].ProductID.UUID)
	assert.Equal(t, "30", sale.Total.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaleRepository_ListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSaleRepository(db)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Nanosecond)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sales WHERE created_at >= $1 AND created_at <= $2 AND payment_method = $3 ORDER BY created_at DESC`)).
		WithArgs(start, end, "Dinheiro").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total", "payment_method", "offline_id", "created_at"}))

	sales, err := repo.List(context.Background(), domain.SaleFilter{Start: &start, End: &end, PaymentMethod: "Dinheiro"})
	require.NoError(t, err)
	assert.Empty(t, sales)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComandaRepository_MarkFinalizedRequiresOpen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewComandaRepository(db)
	id, saleID := uuid.New(), uuid.New()
	at := time.Now()

	mock.ExpectExec(`UPDATE comandas`).
		WithArgs(id, "finalizada", saleID, at, "aberta").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE comandas`).
		WithArgs(id, "finalizada", saleID, at, "aberta").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkFinalized(context.Background(), id, saleID, at))
	assert.ErrorIs(t, repo.MarkFinalized(context.Background(), id, saleID, at), ErrComandaNotOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComandaRepository_LockByIDLoadsItemsWithProducts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewComandaRepository(db)
	id := uuid.New()
	productID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM comandas WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_name", "status", "sale_id", "created_at", "finalized_at"}).
			AddRow(id.String(), "Ana", "aberta", nil, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ci.comanda_id IN ($1) ORDER BY ci.created_at, ci.id`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "comanda_id", "product_id", "quantidade", "created_at",
			"product_name", "product_price", "product_stock",
		}).AddRow(uuid.NewString(), id.String(), productID.String(), 3, now, "Porção", "10.00", 8))

	comanda, err := repo.LockByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, comanda.IsOpen())
	require.Len(t, comanda.Itens, 1)
	assert.Equal(t, 3, comanda.Itens[0].Quantidade)
	require.NotNil(t, comanda.Itens[0].Product)
	assert.Equal(t, "Porção", comanda.Itens[0].Product.Name)
	assert.Equal(t, 8, comanda.Itens[0].Product.Stock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComandaRepository_UpdateItemQuantityNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewComandaRepository(db)
	comandaID, itemID := uuid.New(), uuid.New()

	mock.ExpectQuery(`UPDATE comanda_items`).
		WithArgs(itemID, comandaID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "comanda_id", "product_id", "quantidade", "created_at"}))

	_, err := repo.UpdateItemQuantity(context.Background(), comandaID, itemID, 2)
	assert.ErrorIs(t, err, ErrComandaItemNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewStore(db)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE products`).WithArgs(1, id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(tx Tx) error {
			_, err := tx.Products().DecrementStock(ctx, id, 1)
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewStore(db)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewStore(db)

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := store.WithTx(ctx, func(tx Tx) error { return nil })
		assert.ErrorContains(t, err, "failed to begin transaction")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSortIDs(t *testing.T) {
	a := uuid.MustParse("10000000-0000-0000-0000-000000000000")
	b := uuid.MustParse("20000000-0000-0000-0000-000000000000")
	c := uuid.MustParse("f0000000-0000-0000-0000-000000000000")

	assert.Equal(t, []uuid.UUID{a, b, c}, SortIDs([]uuid.UUID{c, a, b, a}))
	assert.Empty(t, SortIDs(nil))
}
