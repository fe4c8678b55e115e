package projection

import (
	"testing"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedOrder(id string) *order.Order {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:     id,
		UserID: "cust-1",
		Items: []order.OrderItem{
			{ProductID: "p1", VendorID: "vend-a", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ProductID: "p2", VendorID: "vend-b", Quantity: 1, Price: decimal.RequireFromString("2.50")},
			{ProductID: "p3", VendorID: "vend-a", Quantity: 1, Price: decimal.NewFromInt(3)},
		},
		TotalAmount:   decimal.RequireFromString("25.50"),
		PaymentMethod: order.PaymentCOD,
		Status:        order.StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestProjectForVendor(t *testing.T) {
	o := mixedOrder("order-1")

	v, ok := ProjectForVendor(o, "vend-a")

	require.True(t, ok)
	assert.Equal(t, "order-1", v.ID)
	assert.Equal(t, order.StatusConfirmed, v.Status)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "p1", v.Items[0].ProductID)
	assert.Equal(t, "p3", v.Items[1].ProductID)
	assert.True(t, decimal.NewFromInt(23).Equal(v.VendorSubtotal))
	assert.True(t, o.TotalAmount.Equal(v.TotalAmount))
}

func TestProjectForVendor_NoLines(t *testing.T) {
	v, ok := ProjectForVendor(mixedOrder("order-1"), "vend-z")

	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestProjectForVendor_DoesNotAliasOrder(t *testing.T) {
	o := mixedOrder("order-1")

	v, _ := ProjectForVendor(o, "vend-b")
	v.Items[0].Quantity = 42

	assert.Equal(t, 1, o.Items[1].Quantity)
}

func TestProjectOrdersForVendor(t *testing.T) {
	other := mixedOrder("order-2")
	other.Items = other.Items[1:2]

	views := ProjectOrdersForVendor([]*order.Order{mixedOrder("order-1"), other, mixedOrder("order-3")}, "vend-a")

	require.Len(t, views, 2)
	assert.Equal(t, "order-1", views[0].ID)
	assert.Equal(t, "order-3", views[1].ID)
}

func TestProjectOrdersForVendor_Empty(t *testing.T) {
	views := ProjectOrdersForVendor(nil, "vend-a")

	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestProjectAll(t *testing.T) {
	views := ProjectAll([]*order.Order{mixedOrder("order-1")})

	require.Len(t, views, 1)
	assert.Len(t, views[0].Items, 3)
	assert.True(t, views[0].TotalAmount.Equal(views[0].VendorSubtotal))
}
