package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/ec-order-lifecycle/internal/domain/product"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError names the product that could not cover a request and
// how many units it had left at the time of the check.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Deltas maps product id to a signed stock change. Negative values decrement.
type Deltas map[string]int

// Add accumulates delta for productID.
func (d Deltas) Add(productID string, delta int) {
	d[productID] += delta
}

// ProductIDs returns the ids with a non-zero delta in ascending order. Ledgers
// apply adjustments in this order so concurrent batches lock rows consistently.
func (d Deltas) ProductIDs() []string {
	ids := make([]string, 0, len(d))
	for id, delta := range d {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Inverse returns the adjustment that exactly undoes d.
func (d Deltas) Inverse() Deltas {
	inv := make(Deltas, len(d))
	for id, delta := range d {
		inv[id] = -delta
	}
	return inv
}

// Ledger applies stock adjustments. A batch is all-or-nothing: if any
// decrement would drive a product below zero, nothing in the batch is kept and
// an *InsufficientStockError is returned.
type Ledger interface {
	Adjust(ctx context.Context, deltas Deltas) error
}

// Apply runs deltas against an in-memory stock table with the Ledger contract.
func Apply(stock map[string]int, deltas Deltas) error {
	ids := deltas.ProductIDs()
	for _, id := range ids {
		current, ok := stock[id]
		if !ok {
			return fmt.Errorf("%w: %s", product.ErrProductNotFound, id)
		}
		if delta := deltas[id]; current+delta < 0 {
			return &InsufficientStockError{ProductID: id, Available: current, Requested: -delta}
		}
	}
	for _, id := range ids {
		stock[id] += deltas[id]
	}
	return nil
}
