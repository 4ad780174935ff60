//go:build integration

package repository_test

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"estoque-vendas/internal/database"
	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/repository"
	"estoque-vendas/internal/service"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sqlx.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	ctx := context.Background()
	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase("estoque"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sqlx.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}
	testDB.SetMaxOpenConns(20)

	if err := database.RunMigrations(testDB.DB, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}
	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	testDB.Close()
	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func newProduct(t *testing.T, store repository.Store, name string, stock int) *domain.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      name + " " + uuid.NewString()[:8],
		Price:     decimal.RequireFromString("5.00"),
		CostPrice: decimal.RequireFromString("2.00"),
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, store repository.Store, id uuid.UUID) int {
	t.Helper()
	p, err := store.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func newServices(store repository.Store) (service.SaleService, service.ComandaService) {
	logger := zap.NewNop()
	sales := service.NewSaleService(store, service.NewStockLedger(logger), logger)
	return sales, service.NewComandaService(store, sales, logger)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	store := repository.NewStore(testDB)
	sales, _ := newServices(store)
	p := newProduct(t, store, "Cerveja", 5)

	const buyers = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		recorded     int
		insufficient int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sales.RecordSale(context.Background(), service.RecordSaleInput{
				Lines:         []domain.CartLine{{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price}},
				PaymentMethod: "Dinheiro",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				recorded++
			case domain.IsKind(err, domain.KindInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, recorded)
	assert.Equal(t, buyers-5, insufficient)
	assert.Equal(t, 0, stockOf(t, store, p.ID))
}

func TestConcurrentOfflineReplayRecordsOnce(t *testing.T) {
	store := repository.NewStore(testDB)
	sales, _ := newServices(store)
	// exactly one delivery's worth of stock: late duplicates must replay, not fail on stock
	p := newProduct(t, store, "Amendoim", 2)
	offlineID := "pdv-" + uuid.NewString()

	const deliveries = 6
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	ids := map[uuid.UUID]int{}
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sales.RecordSale(context.Background(), service.RecordSaleInput{
				Lines:         []domain.CartLine{{ProductID: p.ID, Quantity: 2, UnitPrice: p.Price}},
				PaymentMethod: "Pix",
				OfflineID:     offlineID,
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[result.Sale.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 0, stockOf(t, store, p.ID))

	sale, err := store.Sales().FindByOfflineID(context.Background(), offlineID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10").Equal(sale.Total))
}

func TestConcurrentFinalizeConvertsComandaOnce(t *testing.T) {
	store := repository.NewStore(testDB)
	_, comandas := newServices(store)
	ctx := context.Background()
	p := newProduct(t, store, "Porção", 10)

	comanda, err := comandas.Create(ctx, "Mesa 4")
	require.NoError(t, err)
	_, err = comandas.AddItem(ctx, comanda.ID, p.ID, 3)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		finalized int
		conflicts int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := comandas.Finalize(ctx, comanda.ID, "Cartão")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				finalized++
			case domain.IsKind(err, domain.KindInvalidState):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, finalized)
	assert.Equal(t, 3, conflicts)
	assert.Equal(t, 7, stockOf(t, store, p.ID))

	got, err := comandas.Get(ctx, comanda.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComandaStatusFinalized, got.Status)
	assert.True(t, got.SaleID.Valid)
}
