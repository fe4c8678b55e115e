package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
)

// validTransitions defines the customer-facing lifecycle
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ParseStatus accepts exactly the five lifecycle states.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// ParsePaymentMethod returns card only when card was asked for explicitly.
func ParsePaymentMethod(s string) PaymentMethod {
	if strings.EqualFold(strings.TrimSpace(s), string(PaymentCard)) {
		return PaymentCard
	}
	return PaymentCOD
}

type ShippingAddress struct {
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// OrderItem is an immutable line. Price, name and vendor are captured when the
// order is placed and never follow later catalog changes.
type OrderItem struct {
	ProductID string          `json:"product"`
	VendorID  string          `json:"vendor"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is price times quantity for the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Line pairs a live product snapshot with the quantity requested from the cart.
type Line struct {
	Product  *product.Product
	Quantity int
}

type PlaceParams struct {
	UserID          string
	ProfileName     string
	Lines           []Line
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Now             time.Time
}

// Place builds a pending order from resolved cart lines. It fails with
// ErrEmptyCart when there are no lines and with *inventory.InsufficientStockError
// for the first line whose quantity exceeds the product's stock. It has no side
// effects; the caller persists the order and applies Reservation to the ledger.
func Place(p PlaceParams) (*Order, error) {
	if len(p.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]OrderItem, 0, len(p.Lines))
	total := decimal.Zero
	for _, line := range p.Lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		if qty > line.Product.Stock {
			return nil, &inventory.InsufficientStockError{
				ProductID: line.Product.ID,
				Available: line.Product.Stock,
				Requested: qty,
			}
		}
		item := OrderItem{
			ProductID: line.Product.ID,
			VendorID:  line.Product.VendorID,
			Name:      line.Product.Name,
			Quantity:  qty,
			Price:     line.Product.Price,
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	addr := p.ShippingAddress
	if strings.TrimSpace(addr.FullName) == "" {
		addr.FullName = p.ProfileName
	}
	method := p.PaymentMethod
	if method != PaymentCard {
		method = PaymentCOD
	}

	return &Order{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: addr,
		PaymentMethod:   method,
		Status:          StatusPending,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition moves the order along one edge of the lifecycle graph.
func (o *Order) Transition(target Status, now time.Time) error {
	if _, ok := validTransitions[target]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// Cancel is the customer path: pending or confirmed only.
func (o *Order) Cancel(now time.Time) error {
	if err := o.Transition(StatusCancelled, now); err != nil {
		return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
	}
	return nil
}

// Override sets any known status without consulting the lifecycle graph. It
// reports whether the change skipped the graph, which callers log. Stock is
// not touched by overrides.
func (o *Order) Override(target Status, now time.Time) (bypassed bool, err error) {
	if _, ok := validTransitions[target]; !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	bypassed = target != o.Status && !o.CanTransitionTo(target)
	o.Status = target
	o.UpdatedAt = now
	return bypassed, nil
}

// Reservation is the ledger batch that takes the order's units out of stock.
func (o *Order) Reservation() inventory.Deltas {
	d := make(inventory.Deltas, len(o.Items))
	for _, item := range o.Items {
		d.Add(item.ProductID, -item.Quantity)
	}
	return d
}

// Restoration exactly inverts Reservation.
func (o *Order) Restoration() inventory.Deltas {
	return o.Reservation().Inverse()
}

// VendorIDs returns the distinct vendors owning at least one line.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		ids = append(ids, item.VendorID)
	}
	return ids
}

func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}
