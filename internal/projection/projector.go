// Package projection derives vendor-scoped views of orders. Views are computed
// per read and never persisted.
package projection

import (
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/shopspring/decimal"
)

// VendorOrder is an order reduced to the lines one vendor sells.
type VendorOrder struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user"`
	Items           []order.OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	VendorSubtotal  decimal.Decimal       `json:"vendorSubtotal"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   order.PaymentMethod   `json:"paymentMethod"`
	Status          order.Status          `json:"status"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func newVendorOrder(o *order.Order, items []order.OrderItem) *VendorOrder {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal())
	}
	return &VendorOrder{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		VendorSubtotal:  subtotal,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// ProjectForVendor keeps only the lines sold by vendorID. The second result is
// false when the vendor has no line in the order.
func ProjectForVendor(o *order.Order, vendorID string) (*VendorOrder, bool) {
	var items []order.OrderItem
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, false
	}
	return newVendorOrder(o, items), true
}

// ProjectOrdersForVendor projects each order and drops those without a
// matching line. Input order is preserved.
func ProjectOrdersForVendor(orders []*order.Order, vendorID string) []*VendorOrder {
	views := make([]*VendorOrder, 0, len(orders))
	for _, o := range orders {
		if v, ok := ProjectForVendor(o, vendorID); ok {
			views = append(views, v)
		}
	}
	return views
}

// ProjectAll is the administrator view: every line, subtotal equal to total.
func ProjectAll(orders []*order.Order) []*VendorOrder {
	views := make([]*VendorOrder, 0, len(orders))
	for _, o := range orders {
		items := make([]order.OrderItem, len(o.Items))
		copy(items, o.Items)
		views = append(views, newVendorOrder(o, items))
	}
	return views
}
