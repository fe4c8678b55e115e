package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/ec-order-lifecycle/internal/domain/access"
	"github.com/example/ec-order-lifecycle/internal/domain/cart"
	"github.com/example/ec-order-lifecycle/internal/domain/inventory"
	"github.com/example/ec-order-lifecycle/internal/domain/order"
	"github.com/example/ec-order-lifecycle/internal/domain/product"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"go.uber.org/zap"
)

var errInvalidBody = errors.New("invalid request body")

type errorResponse struct {
	Error     string `json:"error"`
	ProductID string `json:"product,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, cart.ErrNotInCart):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.ProductID = stockErr.ProductID
		available := stockErr.Available
		resp.Available = &available
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp = errorResponse{Error: "internal server error"}
	}

	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
