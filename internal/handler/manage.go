package handler

import (
	"cmp"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
)

// pagedQuery parses the paging parameters of a dashboard list.
func pagedQuery(r *http.Request) (url.Values, error) {
	q, err := listing.ParseQuery(r.URL.Query())
	if err != nil {
		return nil, err
	}
	return q.Values(), nil
}

func (h *Handler) forwardPaged(w http.ResponseWriter, r *http.Request, path string) {
	q, err := pagedQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: path, Query: q, Auth: true})
}

// mealForm is a provider's menu item.
type mealForm struct {
	Title       string          `json:"title" validate:"required,min=2,max=100"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0.01"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Image       *string         `json:"image"`
	IsAvailable *bool           `json:"isAvailable"`
	CategoryID  string          `json:"categoryId"`
}

func (f *mealForm) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
}

// encode renders the meal body sent to the API. The price is written as a
// number, the currency defaults to USD and availability to true.
func (f *mealForm) encode(userID string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("title", func(e *jx.Encoder) { e.Str(f.Title) })
		e.Field("description", func(e *jx.Encoder) { optStr(e, f.Description) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(f.Price.String())) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(cmp.Or(f.Currency, "USD")) })
		e.Field("image", func(e *jx.Encoder) { optStr(e, f.Image) })
		e.Field("isAvailable", func(e *jx.Encoder) { e.Bool(f.IsAvailable == nil || *f.IsAvailable) })
		if f.CategoryID != "" {
			e.Field("categoryId", func(e *jx.Encoder) { e.Str(f.CategoryID) })
		}
		e.Field("userId", func(e *jx.Encoder) { e.Str(userID) })
	})
	return e.Bytes()
}

func optStr(e *jx.Encoder, s *string) {
	if s == nil {
		e.Null()
		return
	}
	e.Str(*s)
}

// ListMenu returns a page of the caller's own meals.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	s := auth.SessionFrom(r.Context())
	h.forwardPaged(w, r, "/v1/meals/provider/"+url.PathEscape(s.User.ID))
}

// GetMenuItem returns one meal for editing.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/v1/meals/" + pathID(r), Auth: true})
}

// CreateMenuItem adds a meal to the caller's menu.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	h.saveMenuItem(w, r, http.MethodPost, "/meals", http.StatusCreated)
}

// UpdateMenuItem replaces a meal of the caller's menu.
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	h.saveMenuItem(w, r, http.MethodPut, "/meals/"+pathID(r), http.StatusOK)
}

func (h *Handler) saveMenuItem(w http.ResponseWriter, r *http.Request, method, path string, status int) {
	var form mealForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	s := auth.SessionFrom(r.Context())
	h.forward(w, r, status, foodapi.Call{Method: method, Path: path, Body: form.encode(s.User.ID), Auth: true})
}

// DeleteMenuItem removes a meal from the caller's menu.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusNoContent, foodapi.Call{Method: http.MethodDelete, Path: "/meals/" + pathID(r), Auth: true})
}

// providerForm is the public profile of a provider.
type providerForm struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Logo        string `json:"logo,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

func (f *providerForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
}

// GetProviderProfile returns the caller's provider profile.
func (h *Handler) GetProviderProfile(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/v1/providers/me", Auth: true})
}

// CreateProviderProfile creates the caller's provider profile.
func (h *Handler) CreateProviderProfile(w http.ResponseWriter, r *http.Request) {
	var form providerForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	body, err := json.Marshal(form)
	if err != nil {
		fail(w, r, errors.Wrap(err, "encode provider"))
		return
	}
	h.forward(w, r, http.StatusCreated, foodapi.Call{Method: http.MethodPost, Path: "/providers", Body: body, Auth: true})
}

// UpdateProviderProfile updates the caller's own provider profile.
func (h *Handler) UpdateProviderProfile(w http.ResponseWriter, r *http.Request) {
	var form providerForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.orders.GetMyProvider(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	body, err := json.Marshal(form)
	if err != nil {
		fail(w, r, errors.Wrap(err, "encode provider"))
		return
	}
	h.forward(w, r, http.StatusOK, foodapi.Call{
		Method: http.MethodPut,
		Path:   "/providers/" + url.PathEscape(p.ID),
		Body:   body,
		Auth:   true,
	})
}

type categoryForm struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (f *categoryForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
}

func (f *categoryForm) encode() []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(f.Name) })
	})
	return e.Bytes()
}

// ListAdminCategories returns a page of categories with their usage.
func (h *Handler) ListAdminCategories(w http.ResponseWriter, r *http.Request) {
	h.forwardPaged(w, r, "/categories/admin")
}

// CreateCategory adds a meal category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var form categoryForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	h.forward(w, r, http.StatusCreated, foodapi.Call{Method: http.MethodPost, Path: "/v1/categories", Body: form.encode(), Auth: true})
}

// RenameCategory renames a meal category.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	var form categoryForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodPut, Path: "/v1/categories/" + pathID(r), Body: form.encode(), Auth: true})
}

// DeleteCategory removes a meal category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusNoContent, foodapi.Call{Method: http.MethodDelete, Path: "/v1/categories/" + pathID(r), Auth: true})
}

type roleForm struct {
	Role string `json:"role" validate:"required,oneof=CUSTOMER PROVIDER ADMIN"`
}

// ListUsers returns a page of user accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.forwardPaged(w, r, "/v1/users/admin")
}

// UpdateUserRole changes the role of another user.
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if s := auth.SessionFrom(r.Context()); s.User.ID == id {
		writeError(w, http.StatusBadRequest, "you cannot change your own role")
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("role", func(e *jx.Encoder) { e.Str(form.Role) })
	})
	h.forward(w, r, http.StatusOK, foodapi.Call{
		Method: http.MethodPatch,
		Path:   "/v1/users/admin/" + url.PathEscape(id),
		Body:   e.Bytes(),
		Auth:   true,
	})
}
