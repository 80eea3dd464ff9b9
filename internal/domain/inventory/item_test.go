package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsflow/backend/internal/domain/shared"
)

func TestNewItem(t *testing.T) {
	item, err := NewItem("SKU-100", "Widget", 25, 10)
	require.NoError(t, err)
	assert.Equal(t, "SKU-100", item.ProductID)
	assert.Equal(t, 25, item.TotalStock)
	assert.Equal(t, 0, item.TotalSold)
	assert.Equal(t, 10, item.LowStockThreshold)

	_, err = NewItem("", "Widget", 25, 10)
	assert.Error(t, err)

	_, err = NewItem("SKU-100", "Widget", -1, 10)
	assert.Error(t, err)
}

func TestIsLowStockBoundary(t *testing.T) {
	item, err := NewItem("SKU-100", "Widget", 11, 10)
	require.NoError(t, err)
	assert.False(t, item.IsLowStock())

	item.TotalStock = 10
	assert.True(t, item.IsLowStock())

	item.TotalStock = 0
	assert.True(t, item.IsLowStock())
}

func TestAddStock(t *testing.T) {
	item, err := NewItem("SKU-100", "Widget", 5, 10)
	require.NoError(t, err)

	require.NoError(t, item.AddStock(20))
	assert.Equal(t, 25, item.TotalStock)

	assert.Error(t, item.AddStock(0))
	assert.Error(t, item.AddStock(-5))
	assert.Equal(t, 25, item.TotalStock)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	item, err := NewItem("SKU-100", "Widget", 5, 10)
	require.NoError(t, err)

	require.NoError(t, item.Adjust(-5))
	assert.Equal(t, 0, item.TotalStock)

	err = item.Adjust(-1)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
}

func TestDecrementForSale(t *testing.T) {
	item, err := NewItem("SKU-100", "Widget", 10, 3)
	require.NoError(t, err)

	require.NoError(t, item.DecrementForSale(4))
	assert.Equal(t, 6, item.TotalStock)
	assert.Equal(t, 4, item.TotalSold)

	err = item.DecrementForSale(7)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.ErrInsufficientStock.Code, domainErr.Code)

	assert.Error(t, item.DecrementForSale(0))
}
