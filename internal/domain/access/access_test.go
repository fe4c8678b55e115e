package access

import (
	"testing"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/stretchr/testify/assert"
)

func testOrder() *order.Order {
	return &order.Order{
		ID:     "order-1",
		UserID: "cust-1",
		Items: []order.OrderItem{
			{ProductID: "p1", VendorID: "vend-1", Quantity: 1},
			{ProductID: "p2", VendorID: "vend-2", Quantity: 1},
		},
		Status: order.StatusPending,
	}
}

func TestAccess(t *testing.T) {
	o := testOrder()

	tests := []struct {
		name                       string
		caller                     Caller
		view, updateStatus, cancel bool
	}{
		{"owner", Caller{ID: "cust-1", Role: user.RoleCustomer}, true, false, true},
		{"other customer", Caller{ID: "cust-2", Role: user.RoleCustomer}, false, false, false},
		{"vendor with a line", Caller{ID: "vend-1", Role: user.RoleVendor}, true, true, false},
		{"vendor without a line", Caller{ID: "vend-3", Role: user.RoleVendor}, false, false, false},
		{"admin", Caller{ID: "admin-1", Role: user.RoleAdmin}, true, true, false},
		{"customer id matching a vendor", Caller{ID: "vend-1", Role: user.RoleCustomer}, false, false, false},
		{"anonymous", Caller{}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.view, CanView(o, tt.caller), "view")
			assert.Equal(t, tt.updateStatus, CanUpdateStatus(o, tt.caller), "update status")
			assert.Equal(t, tt.cancel, CanCancel(o, tt.caller), "cancel")
		})
	}
}

func TestSellsIn(t *testing.T) {
	o := testOrder()

	assert.True(t, SellsIn(o, "vend-2"))
	assert.False(t, SellsIn(o, "vend-3"))
	assert.False(t, SellsIn(o, ""))
}
