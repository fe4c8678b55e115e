// Package access decides who may read or act on an order. Every entry point
// goes through these functions; none of them perform I/O.
package access

import (
	"errors"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
)

var ErrNotAuthorized = errors.New("not authorized for this order")

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   string
	Role user.Role
}

func (c Caller) IsAdmin() bool  { return c.Role == user.RoleAdmin }
func (c Caller) IsVendor() bool { return c.Role == user.RoleVendor }

// SellsIn reports whether vendorID owns at least one line of o.
func SellsIn(o *order.Order, vendorID string) bool {
	if vendorID == "" {
		return false
	}
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// CanView: the owner, any admin, or a vendor with a line in the order.
func CanView(o *order.Order, c Caller) bool {
	if c.ID != "" && o.UserID == c.ID {
		return true
	}
	return CanUpdateStatus(o, c)
}

// CanUpdateStatus: any admin, or a vendor with a line in the order.
func CanUpdateStatus(o *order.Order, c Caller) bool {
	if c.IsAdmin() {
		return true
	}
	return c.IsVendor() && SellsIn(o, c.ID)
}

// CanCancel: only the customer who placed the order.
func CanCancel(o *order.Order, c Caller) bool {
	return c.ID != "" && o.UserID == c.ID
}
