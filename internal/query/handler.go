package query

import (
	"context"

	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/projection"
)

// Handler serves the read side. Every order read passes the access checks.
type Handler struct {
	store store.Store
}

func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

// GetOrder returns the order when the caller may view it.
func (h *Handler) GetOrder(ctx context.Context, orderID string, caller access.Caller) (*order.Order, error) {
	o, err := h.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(o, caller) {
		return nil, access.ErrNotAuthorized
	}
	return o, nil
}

// ListMyOrders returns the caller's own orders, newest first.
func (h *Handler) ListMyOrders(ctx context.Context, caller access.Caller) ([]*order.Order, error) {
	return h.store.ListOrdersByUser(ctx, caller.ID)
}

// ListVendorOrders returns the orders a vendor sells in, reduced to the
// vendor's lines. Administrators see every order in full.
func (h *Handler) ListVendorOrders(ctx context.Context, caller access.Caller) ([]*projection.VendorOrder, error) {
	switch {
	case caller.IsAdmin():
		orders, err := h.store.ListOrders(ctx)
		if err != nil {
			return nil, err
		}
		return projection.ProjectAll(orders), nil
	case caller.IsVendor():
		orders, err := h.store.ListOrdersByVendor(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		return projection.ProjectOrdersForVendor(orders, caller.ID), nil
	default:
		return nil, access.ErrNotAuthorized
	}
}

func (h *Handler) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return h.store.GetCart(ctx, userID)
}
