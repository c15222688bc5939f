package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/domain/checkout"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
)

// checkoutForm is the delivery form submitted at checkout. Email and notes
// are collected for display only.
type checkoutForm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	Notes   string `json:"notes"`
}

type checkoutResponse struct {
	Orders  []*order.Order  `json:"orders"`
	Pricing pricingResponse `json:"pricing"`
}

// Checkout places one order per provider for the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var form checkoutForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}

	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	userID := auth.SessionFrom(ctx).User.ID
	res, err := h.checkout.Checkout(ctx, userID, c, checkout.Address{
		Street: form.Address,
		City:   form.City,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	zctx.From(ctx).Debug("Checkout form accepted",
		zap.String("name", form.Name),
		zap.Bool("has_notes", form.Notes != ""),
	)
	writeJSON(w, r, http.StatusCreated, checkoutResponse{
		Orders:  res.Orders,
		Pricing: newPricingResponse(res.Summary),
	})
}
