package api

import (
	"net/http"

	"github.com/example/ec-order-lifecycle/internal/api/middleware"
	"github.com/example/ec-order-lifecycle/internal/command"
	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	logger       *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		logger:       logger.Named("api"),
	}
}

// caller is set by AuthMiddleware on every route that reaches a handler.
func caller(r *http.Request) access.Caller {
	c, _ := middleware.GetCaller(r.Context())
	return c
}

// Order Handlers

type placeOrderRequest struct {
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), command.PlaceOrder{
		Caller:          caller(r),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListMyOrders(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.cmdHandler.CancelOrder(r.Context(), command.CancelOrder{
		OrderID: chi.URLParam(r, "id"),
		Caller:  caller(r),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), command.UpdateOrderStatus{
		OrderID: chi.URLParam(r, "id"),
		Caller:  caller(r),
		Status:  req.Status,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) GetVendorOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.queryHandler.ListVendorOrders(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}
