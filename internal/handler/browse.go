package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
)

// passQuery copies the named parameters that are set on r.
func passQuery(r *http.Request, keys ...string) url.Values {
	in := r.URL.Query()
	out := url.Values{}
	for _, k := range keys {
		if v := strings.TrimSpace(in.Get(k)); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

func pathID(r *http.Request) string {
	return url.PathEscape(chi.URLParam(r, "id"))
}

// forward performs call and writes its payload with status.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, status int, call foodapi.Call) {
	raw, err := h.upstream.Forward(r.Context(), call)
	if err != nil {
		fail(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeRaw(w, status, raw)
}

// ListMeals returns the public meal catalog.
func (h *Handler) ListMeals(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{
		Method: http.MethodGet,
		Path:   "/meals",
		Query:  passQuery(r, "search", "sort", "page", "limit", "categoryId"),
	})
}

// GetMeal returns one meal.
func (h *Handler) GetMeal(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/meals/" + pathID(r)})
}

// ListMealReviews returns the reviews left for a meal.
func (h *Handler) ListMealReviews(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/reviews/meal/" + pathID(r)})
}

// ListRecentReviews returns the latest reviews across all meals.
func (h *Handler) ListRecentReviews(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{
		Method: http.MethodGet,
		Path:   "/reviews/recent",
		Query:  passQuery(r, "limit"),
	})
}

// ListProviders returns the public provider directory.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{
		Method: http.MethodGet,
		Path:   "/providers",
		Query:  passQuery(r, "search", "sort", "page", "limit"),
	})
}

// GetProvider returns one provider with its menu.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/providers/" + pathID(r)})
}

// ListCategories returns the meal categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, http.StatusOK, foodapi.Call{Method: http.MethodGet, Path: "/categories"})
}

type reviewForm struct {
	MealID  string `json:"mealId" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (f *reviewForm) normalize() {
	f.Comment = strings.TrimSpace(f.Comment)
}

// CreateReview records the caller's review of a meal.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var form reviewForm
	if err := h.decode(r, &form); err != nil {
		fail(w, r, err)
		return
	}
	s := auth.SessionFrom(r.Context())

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("mealId", func(e *jx.Encoder) { e.Str(form.MealID) })
		e.Field("rating", func(e *jx.Encoder) { e.Int(form.Rating) })
		e.Field("comment", func(e *jx.Encoder) { e.Str(form.Comment) })
		e.Field("customerId", func(e *jx.Encoder) { e.Str(s.User.ID) })
	})
	h.forward(w, r, http.StatusCreated, foodapi.Call{
		Method: http.MethodPost,
		Path:   "/v1/reviews",
		Body:   e.Bytes(),
		Auth:   true,
	})
}
