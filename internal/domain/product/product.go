package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

// Product is the catalog entry as seen by the order engine. Catalog CRUD lives
// elsewhere; only Stock is ever written from here, and only through the ledger.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	VendorID    string          `json:"vendor"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks the catalog invariants the engine relies on.
func (p *Product) Validate() error {
	if p.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return errors.New("stock must not be negative")
	}
	return nil
}

// Clone returns a copy that can be handed out without sharing state.
func (p *Product) Clone() *Product {
	c := *p
	return &c
}
