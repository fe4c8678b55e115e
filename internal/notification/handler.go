package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/example/ec-order-lifecycle/internal/email"
	"github.com/example/ec-order-lifecycle/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer is satisfied by *email.Service.
type Mailer interface {
	SendOrderConfirmation(to, orderID, paymentMethod string, total decimal.Decimal, items []email.OrderItem) error
	SendOrderCancelled(to, orderID string, items []email.OrderItem) error
	SendStatusUpdate(to, orderID, from, status string) error
}

// UserReader resolves the recipient of a notification.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// Handler processes order lifecycle events for sending notifications
type Handler struct {
	mailer Mailer
	users  UserReader
	logger *zap.Logger
}

func NewHandler(mailer Mailer, users UserReader, logger *zap.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		users:  users,
		logger: logger.Named("notifier"),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return err
	}

	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return h.notify(ctx, e.UserID, e.OrderID, event.EventType, func(to string) error {
			return h.mailer.SendOrderConfirmation(to, e.OrderID, string(e.PaymentMethod), e.TotalAmount, toEmailItems(e.Items))
		})
	case order.EventOrderCancelled:
		var e order.OrderCancelled
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return h.notify(ctx, e.UserID, e.OrderID, event.EventType, func(to string) error {
			return h.mailer.SendOrderCancelled(to, e.OrderID, toEmailItems(e.Items))
		})
	case order.EventOrderStatusChanged:
		var e order.OrderStatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		if e.From == e.To {
			return nil
		}
		return h.notify(ctx, e.UserID, e.OrderID, event.EventType, func(to string) error {
			return h.mailer.SendStatusUpdate(to, e.OrderID, string(e.From), string(e.To))
		})
	default:
		h.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}
}

// notify looks up the recipient and sends. Missing users or addresses are
// skipped: there is nobody to tell.
func (h *Handler) notify(ctx context.Context, userID, orderID, eventType string, send func(to string) error) error {
	log := h.logger.With(
		zap.String("event_type", eventType),
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
	)

	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			log.Warn("user not found, skipping notification")
			return nil
		}
		return err
	}
	if u.Email == "" {
		log.Warn("user has no email, skipping notification")
		return nil
	}

	if err := send(u.Email); err != nil {
		log.Error("failed to send email", zap.Error(err))
		return err
	}
	log.Info("notification sent")
	return nil
}

func toEmailItems(items []order.OrderItem) []email.OrderItem {
	out := make([]email.OrderItem, len(items))
	for i, item := range items {
		out[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return out
}
