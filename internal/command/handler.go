package command

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher emits lifecycle events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store     store.Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customises a Handler.
type Option func(*Handler)

func WithPublisher(p Publisher) Option { return func(h *Handler) { h.publisher = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

func NewHandler(s store.Store, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:  s,
		logger: logger.Named("command"),
		tracer: otel.Tracer("command"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PlaceOrder turns the caller's cart into a pending order. Availability is
// checked, the order inserted and stock decremented in one transaction; the
// cart is cleared after commit.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	ctx, span := h.tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(attribute.String("user.id", cmd.Caller.ID)))
	defer span.End()

	c, err := h.store.GetCart(ctx, cmd.Caller.ID)
	if err != nil {
		return nil, h.fail(span, err)
	}
	if c.IsEmpty() {
		return nil, h.fail(span, order.ErrEmptyCart)
	}

	profileName := ""
	if u, err := h.store.GetUser(ctx, cmd.Caller.ID); err == nil {
		profileName = u.Name
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return nil, h.fail(span, err)
	}

	var placed *order.Order
	err = h.store.WithTx(ctx, func(tx store.Tx) error {
		products, err := tx.GetProductsForUpdate(ctx, c.ProductIDs())
		if err != nil {
			return err
		}

		lines := make([]order.Line, 0, len(c.Items))
		for _, item := range c.Items {
			p, ok := products[item.ProductID]
			if !ok {
				h.logger.Info("skipping product no longer in catalog",
					zap.String("user_id", cmd.Caller.ID),
					zap.String("product_id", item.ProductID),
				)
				continue
			}
			lines = append(lines, order.Line{Product: p, Quantity: item.Quantity})
		}

		o, err := order.Place(order.PlaceParams{
			UserID:          cmd.Caller.ID,
			ProfileName:     profileName,
			Lines:           lines,
			ShippingAddress: cmd.ShippingAddress,
			PaymentMethod:   order.ParsePaymentMethod(cmd.PaymentMethod),
			Now:             h.now(),
		})
		if err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.Adjust(ctx, o.Reservation()); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			h.metrics.StockConflict()
		}
		return nil, h.fail(span, err)
	}

	h.metrics.OrderPlaced()
	span.SetAttributes(attribute.String("order.id", placed.ID))
	h.logger.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.String("user_id", placed.UserID),
		zap.String("total", placed.TotalAmount.String()),
		zap.Int("items", len(placed.Items)),
	)

	// The order is committed. Only the checked-out lines leave the cart; anything
	// added since the snapshot was read stays.
	if _, err := h.store.UpdateCart(ctx, placed.UserID, func(current *cart.Cart) error {
		current.Subtract(c.Items)
		return nil
	}); err != nil {
		h.logger.Warn("failed to clear cart after checkout",
			zap.String("user_id", placed.UserID),
			zap.String("order_id", placed.ID),
			zap.Error(err),
		)
	}

	h.publish(ctx, placed.ID, order.EventOrderPlaced, order.OrderPlaced{
		OrderID:       placed.ID,
		UserID:        placed.UserID,
		VendorIDs:     placed.VendorIDs(),
		Items:         placed.Items,
		TotalAmount:   placed.TotalAmount,
		PaymentMethod: placed.PaymentMethod,
		PlacedAt:      placed.CreatedAt,
	})

	return placed, nil
}

// CancelOrder is the customer path. The order row is locked, stock restored
// and the status written in one transaction, so a repeated cancel can never
// restore stock twice.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	ctx, span := h.tracer.Start(ctx, "CancelOrder", trace.WithAttributes(attribute.String("order.id", cmd.OrderID)))
	defer span.End()

	var cancelled *order.Order
	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !access.CanCancel(o, cmd.Caller) {
			return access.ErrNotAuthorized
		}
		if err := o.Cancel(h.now()); err != nil {
			return err
		}
		if err := tx.Adjust(ctx, o.Restoration()); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, h.fail(span, err)
	}

	h.metrics.OrderCancelled()
	h.logger.Info("order cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("user_id", cancelled.UserID),
	)

	h.publish(ctx, cancelled.ID, order.EventOrderCancelled, order.OrderCancelled{
		OrderID:     cancelled.ID,
		UserID:      cancelled.UserID,
		Items:       cancelled.Items,
		CancelledAt: cancelled.UpdatedAt,
	})

	return cancelled, nil
}

// UpdateOrderStatus is the admin/vendor path. Any of the five statuses may be
// set regardless of the lifecycle graph; stock is never touched here.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	ctx, span := h.tracer.Start(ctx, "UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.status", cmd.Status),
	))
	defer span.End()

	target, err := order.ParseStatus(cmd.Status)
	if err != nil {
		return nil, h.fail(span, err)
	}

	var (
		updated  *order.Order
		from     order.Status
		bypassed bool
	)
	err = h.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !access.CanUpdateStatus(o, cmd.Caller) {
			return access.ErrNotAuthorized
		}
		from = o.Status
		if bypassed, err = o.Override(target, h.now()); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, h.fail(span, err)
	}

	fields := []zap.Field{
		zap.String("order_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("changed_by", cmd.Caller.ID),
		zap.String("role", string(cmd.Caller.Role)),
	}
	if bypassed {
		h.logger.Warn("order status override outside lifecycle", fields...)
	} else {
		h.logger.Info("order status updated", fields...)
	}
	h.metrics.StatusChanged(string(target), bypassed)

	h.publish(ctx, updated.ID, order.EventOrderStatusChanged, order.OrderStatusChanged{
		OrderID:   updated.ID,
		UserID:    updated.UserID,
		From:      from,
		To:        target,
		ChangedBy: cmd.Caller.ID,
		Override:  bypassed,
		ChangedAt: updated.UpdatedAt,
	})

	return updated, nil
}

// AddToCart adds an item to cart
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}
	if _, err := h.store.GetProduct(ctx, cmd.ProductID); err != nil {
		return nil, err
	}
	return h.updateCart(ctx, cmd.UserID, func(c *cart.Cart) error {
		return c.Add(cmd.ProductID, cmd.Quantity)
	})
}

// SetCartQuantity replaces a line's quantity; zero or less removes the line.
func (h *Handler) SetCartQuantity(ctx context.Context, cmd SetCartQuantity) (*cart.Cart, error) {
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}
	if cmd.Quantity > 0 {
		if _, err := h.store.GetProduct(ctx, cmd.ProductID); err != nil {
			return nil, err
		}
	}
	return h.updateCart(ctx, cmd.UserID, func(c *cart.Cart) error {
		return c.SetQuantity(cmd.ProductID, cmd.Quantity)
	})
}

// RemoveFromCart removes an item from cart
func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*cart.Cart, error) {
	return h.updateCart(ctx, cmd.UserID, func(c *cart.Cart) error {
		return c.Remove(cmd.ProductID)
	})
}

// ClearCart clears all items from cart
func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (*cart.Cart, error) {
	return h.updateCart(ctx, cmd.UserID, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (h *Handler) updateCart(ctx context.Context, userID string, mutate func(*cart.Cart) error) (*cart.Cart, error) {
	return h.store.UpdateCart(ctx, userID, mutate)
}

// publish wraps data in an event envelope. Delivery failures are logged only:
// the state change is already committed.
func (h *Handler) publish(ctx context.Context, orderID, eventType string, data any) {
	if h.publisher == nil {
		return
	}
	event, err := store.NewEvent(orderID, order.AggregateType, eventType, data, h.now())
	if err != nil {
		h.logger.Error("failed to build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := h.publisher.Publish(ctx, orderID, event); err != nil {
		h.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (h *Handler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
