package command

import (
	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
)

// Order Commands
type PlaceOrder struct {
	Caller          access.Caller
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
}

type CancelOrder struct {
	OrderID string
	Caller  access.Caller
}

type UpdateOrderStatus struct {
	OrderID string
	Caller  access.Caller
	Status  string `json:"status"`
}

// Cart Commands
type AddToCart struct {
	UserID    string
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type SetCartQuantity struct {
	UserID    string
	ProductID string
	Quantity  int `json:"quantity"`
}

type RemoveFromCart struct {
	UserID    string
	ProductID string
}

type ClearCart struct {
	UserID string
}
