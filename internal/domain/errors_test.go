package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockErrorNamesProducts(t *testing.T) {
	err := NewInsufficientStockError("Cerveja", "Amendoim")

	assert.Equal(t, KindInsufficientStock, err.Kind)
	assert.Equal(t, "Estoque insuficiente para o produto Cerveja, Amendoim", err.Message)
	assert.Equal(t, []string{"Cerveja", "Amendoim"}, err.Products)
	assert.False(t, err.Retryable())
}

func TestKindOfFollowsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("finalize: %w", NewNotFoundError("Comanda não encontrada"))

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestPersistenceErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("Erro ao salvar venda", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.Retryable())
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSaleTotalSumsLines(t *testing.T) {
	items := []SaleItem{
		{Quantity: 3, Price: mustDecimal(t, "2.50")},
		{Quantity: 1, Price: mustDecimal(t, "10.10")},
	}

	assert.Equal(t, "17.6", SaleTotal(items).String())
	assert.True(t, SaleTotal(nil).IsZero())
}
