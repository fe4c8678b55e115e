package cart

import (
	"errors"
	"math"
)

// MaxQuantity bounds a single line. It matches the INTEGER column lines are
// stored in.
const MaxQuantity = math.MaxInt32

var (
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrNotInCart       = errors.New("product is not in cart")
	ErrInvalidQuantity = errors.New("quantity exceeds the per-line limit")
)

// Item is one cart line. It carries no price: prices are resolved from the
// catalog when the cart is turned into an order.
type Item struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Cart is the per-user aggregate. Lines keep insertion order.
type Cart struct {
	UserID string `json:"user"`
	Items  []Item `json:"items"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Items: []Item{}}
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges quantity into an existing line or appends a new one.
// Quantities below one are floored to one; a line never grows past MaxQuantity.
func (c *Cart) Add(productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		quantity = 1
	}
	if quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(productID); i >= 0 {
		if c.Items[i].Quantity > MaxQuantity-quantity {
			return ErrInvalidQuantity
		}
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	return nil
}

// SetQuantity replaces the quantity of a line. Zero or less removes it.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	i := c.indexOf(productID)
	switch {
	case quantity <= 0:
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
	case i >= 0:
		c.Items[i].Quantity = quantity
	default:
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	}
	return nil
}

func (c *Cart) Remove(productID string) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrNotInCart
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// Subtract takes the given lines out of the cart, as after a checkout of a
// snapshot of it. Lines added since the snapshot, and any quantity added to a
// snapshotted line, stay behind.
func (c *Cart) Subtract(lines []Item) {
	for _, line := range lines {
		i := c.indexOf(line.ProductID)
		if i < 0 {
			continue
		}
		if c.Items[i].Quantity > line.Quantity {
			c.Items[i].Quantity -= line.Quantity
			continue
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs lists the referenced products in line order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (c *Cart) Clone() *Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return &Cart{UserID: c.UserID, Items: items}
}
