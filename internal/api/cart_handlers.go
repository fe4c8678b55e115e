package api

import (
	"net/http"

	"github.com/example/ec-order-lifecycle/internal/command"
	"github.com/go-chi/chi/v5"
)

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.queryHandler.GetCart(r.Context(), caller(r).ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.cmdHandler.AddToCart(r.Context(), command.AddToCart{
		UserID:    caller(r).ID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handlers) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.cmdHandler.SetCartQuantity(r.Context(), command.SetCartQuantity{
		UserID:    caller(r).ID,
		ProductID: chi.URLParam(r, "productId"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.RemoveFromCart(r.Context(), command.RemoveFromCart{
		UserID:    caller(r).ID,
		ProductID: chi.URLParam(r, "productId"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{UserID: caller(r).ID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
