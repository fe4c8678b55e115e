package order

import (
	"errors"
	"testing"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testProduct(id, vendor, price string, stock int) *product.Product {
	return &product.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		VendorID: vendor,
	}
}

func placeParams(lines ...Line) PlaceParams {
	return PlaceParams{
		UserID:          "user-1",
		ProfileName:     "Alice Smith",
		Lines:           lines,
		ShippingAddress: ShippingAddress{Address: "1 Main St", City: "Springfield", Zip: "12345", Country: "US"},
		Now:             testNow,
	}
}

func orderWithStatus(status Status) *Order {
	return &Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: []OrderItem{
			{ProductID: "p1", VendorID: "v1", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ProductID: "p2", VendorID: "v2", Quantity: 1, Price: decimal.NewFromInt(5)},
		},
		Status: status,
	}
}

// ============================================
// Place Tests
// ============================================

func TestPlace_Success(t *testing.T) {
	o, err := Place(placeParams(
		Line{Product: testProduct("p1", "v1", "10.00", 5), Quantity: 2},
		Line{Product: testProduct("p2", "v2", "2.50", 3), Quantity: 1},
	))

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
	assert.True(t, decimal.RequireFromString("22.50").Equal(o.TotalAmount))
	assert.Equal(t, testNow, o.CreatedAt)
	assert.Equal(t, testNow, o.UpdatedAt)

	require.Len(t, o.Items, 2)
	assert.Equal(t, OrderItem{
		ProductID: "p1", VendorID: "v1", Name: "Product p1", Quantity: 2,
		Price: decimal.RequireFromString("10.00"),
	}, o.Items[0])
}

func TestPlace_FullNameFallsBackToProfile(t *testing.T) {
	o, err := Place(placeParams(Line{Product: testProduct("p1", "v1", "1", 1), Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", o.ShippingAddress.FullName)

	p := placeParams(Line{Product: testProduct("p1", "v1", "1", 1), Quantity: 1})
	p.ShippingAddress.FullName = "Bob"
	o, err = Place(p)
	require.NoError(t, err)
	assert.Equal(t, "Bob", o.ShippingAddress.FullName)
}

func TestPlace_PaymentMethod(t *testing.T) {
	p := placeParams(Line{Product: testProduct("p1", "v1", "1", 1), Quantity: 1})
	p.PaymentMethod = PaymentCard
	o, err := Place(p)
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, o.PaymentMethod)

	p.PaymentMethod = "bitcoin"
	o, err = Place(p)
	require.NoError(t, err)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
}

func TestPlace_QuantityBelowOneIsClamped(t *testing.T) {
	o, err := Place(placeParams(Line{Product: testProduct("p1", "v1", "4", 2), Quantity: 0}))

	require.NoError(t, err)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(4).Equal(o.TotalAmount))
}

func TestPlace_EmptyLines(t *testing.T) {
	o, err := Place(placeParams())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, o)
}

func TestPlace_InsufficientStock(t *testing.T) {
	o, err := Place(placeParams(
		Line{Product: testProduct("p1", "v1", "1", 5), Quantity: 1},
		Line{Product: testProduct("p2", "v1", "1", 2), Quantity: 3},
	))

	assert.Nil(t, o)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
}

func TestPlace_ExactStockSucceeds(t *testing.T) {
	_, err := Place(placeParams(Line{Product: testProduct("p1", "v1", "1", 3), Quantity: 3}))
	assert.NoError(t, err)
}

// ============================================
// Status Tests
// ============================================

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestParsePaymentMethod(t *testing.T) {
	assert.Equal(t, PaymentCard, ParsePaymentMethod("CARD"))
	assert.Equal(t, PaymentCOD, ParsePaymentMethod("cod"))
	assert.Equal(t, PaymentCOD, ParsePaymentMethod(""))
	assert.Equal(t, PaymentCOD, ParsePaymentMethod("cheque"))
}

func TestOrder_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := orderWithStatus(tt.from)
			assert.Equal(t, tt.want, o.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_Transition(t *testing.T) {
	o := orderWithStatus(StatusPending)

	require.NoError(t, o.Transition(StatusConfirmed, testNow))
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, testNow, o.UpdatedAt)

	err := o.Transition(StatusDelivered, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusConfirmed, o.Status)

	err = o.Transition("unknown", testNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrder_Cancel(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed} {
		o := orderWithStatus(s)
		require.NoError(t, o.Cancel(testNow))
		assert.Equal(t, StatusCancelled, o.Status)
	}

	for _, s := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		o := orderWithStatus(s)
		err := o.Cancel(testNow)
		assert.ErrorIs(t, err, ErrNotCancellable, "status %s", s)
		assert.Equal(t, s, o.Status)
	}
}

func TestOrder_Override(t *testing.T) {
	o := orderWithStatus(StatusPending)
	bypassed, err := o.Override(StatusConfirmed, testNow)
	require.NoError(t, err)
	assert.False(t, bypassed)

	bypassed, err = o.Override(StatusDelivered, testNow)
	require.NoError(t, err)
	assert.True(t, bypassed)
	assert.Equal(t, StatusDelivered, o.Status)

	bypassed, err = o.Override(StatusDelivered, testNow)
	require.NoError(t, err)
	assert.False(t, bypassed)

	_, err = o.Override("lost", testNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusDelivered, o.Status)
}

// ============================================
// Ledger Batch Tests
// ============================================

func TestOrder_ReservationAndRestoration(t *testing.T) {
	o := orderWithStatus(StatusPending)
	o.Items = append(o.Items, OrderItem{ProductID: "p1", VendorID: "v1", Quantity: 3})

	assert.Equal(t, inventory.Deltas{"p1": -5, "p2": -1}, o.Reservation())
	assert.Equal(t, inventory.Deltas{"p1": 5, "p2": 1}, o.Restoration())
}

func TestOrder_VendorIDs(t *testing.T) {
	o := orderWithStatus(StatusPending)
	o.Items = append(o.Items, OrderItem{ProductID: "p3", VendorID: "v1", Quantity: 1})

	assert.Equal(t, []string{"v1", "v2"}, o.VendorIDs())
}

func TestOrder_CloneDoesNotShareItems(t *testing.T) {
	o := orderWithStatus(StatusPending)
	c := o.Clone()
	c.Items[0].Quantity = 99
	c.Status = StatusShipped

	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, StatusPending, o.Status)
}
