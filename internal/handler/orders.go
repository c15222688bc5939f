package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListMyOrders returns the caller's order history.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMyOrders(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, orders)
}

// ListProviderOrders returns a page of the orders placed with the caller's
// provider profile.
func (h *Handler) ListProviderOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := listing.ParseQuery(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.orders.GetMyProvider(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.orders.ListProviderOrders(ctx, p.ID, q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// UpdateOrderStatus moves an order to a new status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, o)
}

// ListAllOrders returns a page of every order.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	q, err := listing.ParseQuery(r.URL.Query())
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.orders.ListAllOrders(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// DeleteOrder removes an order.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
