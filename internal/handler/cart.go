package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/catalog"
	"github.com/xenking/foodhub-storefront/internal/domain/pricing"
)

type addItemRequest struct {
	MealID string `json:"mealId" validate:"required"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type cartResponse struct {
	Items      []cart.Item     `json:"items"`
	TotalItems int             `json:"totalItems"`
	Pricing    pricingResponse `json:"pricing"`
}

type pricingResponse struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Display     priceDisplay    `json:"display"`
}

type priceDisplay struct {
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"deliveryFee"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

func newPricingResponse(s pricing.Summary) pricingResponse {
	return pricingResponse{
		Subtotal:    s.Subtotal,
		DeliveryFee: s.DeliveryFee,
		Tax:         s.Tax,
		Total:       s.Total,
		Display: priceDisplay{
			Subtotal:    pricing.Format(s.Subtotal),
			DeliveryFee: pricing.Format(s.DeliveryFee),
			Tax:         pricing.Format(s.Tax),
			Total:       pricing.Format(s.Total),
		},
	}
}

func (h *Handler) cartResponse(snap cart.Snapshot) cartResponse {
	items := snap.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{
		Items:      items,
		TotalItems: snap.TotalItems(),
		Pricing:    newPricingResponse(h.pricing.Summarize(snap.TotalPrice())),
	}
}

// store returns the cart of the authenticated customer.
func (h *Handler) store(r *http.Request) (*cart.Store, error) {
	s := auth.SessionFrom(r.Context())
	if s == nil {
		return nil, errors.New("no session")
	}
	return h.carts.Get(r.Context(), s.User.ID)
}

// GetCart returns the items, totals and price breakdown of the cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c.Snapshot()))
}

// AddItem looks the meal up in the catalog and adds one unit of it.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	meal, err := h.meals.GetMeal(ctx, req.MealID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !meal.Available() {
		fail(w, r, catalog.ErrUnavailable)
		return
	}

	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	candidate := cart.Candidate{
		MealID:     meal.ID,
		Title:      meal.Title,
		UnitPrice:  meal.Price,
		ImageRef:   meal.Image,
		ProviderID: meal.ProviderID(),
	}
	if meal.Provider != nil {
		candidate.ProviderName = meal.Provider.Name
	}
	if err := c.AddItem(ctx, candidate); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, h.cartResponse(c.Snapshot()))
}

// UpdateItem sets the quantity of a line item; zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := h.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c.Snapshot()))
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c.Snapshot()))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.store(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.ClearCart(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartResponse(c.Snapshot()))
}
