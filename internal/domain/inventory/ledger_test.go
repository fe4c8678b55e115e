package inventory

import (
	"errors"
	"testing"

	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltas_ProductIDsSortedAndNonZero(t *testing.T) {
	d := Deltas{}
	d.Add("p3", -1)
	d.Add("p1", -2)
	d.Add("p2", 4)
	d.Add("p2", -4)

	assert.Equal(t, []string{"p1", "p3"}, d.ProductIDs())
}

func TestDeltas_Inverse(t *testing.T) {
	d := Deltas{"p1": -2, "p2": 3}

	assert.Equal(t, Deltas{"p1": 2, "p2": -3}, d.Inverse())
	assert.Equal(t, d, d.Inverse().Inverse())
}

func TestApply_Success(t *testing.T) {
	stock := map[string]int{"p1": 5, "p2": 1}

	require.NoError(t, Apply(stock, Deltas{"p1": -5, "p2": -1}))
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, stock)

	require.NoError(t, Apply(stock, Deltas{"p1": 5, "p2": 1}))
	assert.Equal(t, map[string]int{"p1": 5, "p2": 1}, stock)
}

func TestApply_InsufficientStockLeavesTableUntouched(t *testing.T) {
	stock := map[string]int{"p1": 5, "p2": 1}

	err := Apply(stock, Deltas{"p1": -2, "p2": -2})

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, map[string]int{"p1": 5, "p2": 1}, stock)
}

func TestApply_UnknownProduct(t *testing.T) {
	stock := map[string]int{"p1": 5}

	err := Apply(stock, Deltas{"p1": -1, "p9": -1})

	assert.ErrorIs(t, err, product.ErrProductNotFound)
	assert.Equal(t, 5, stock["p1"])
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p1", Available: 2, Requested: 3}

	assert.Equal(t, "insufficient stock for product p1: requested 3, available 2", err.Error())
}
