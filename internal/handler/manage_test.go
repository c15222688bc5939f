package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodhub-storefront/internal/foodapi"
)

func TestBrowse_Public(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name  string
		path  string
		want  string
		query string
	}{
		{"Meals", "/api/meals?search=biryani&sort=price&debug=1", "/meals", "search=biryani&sort=price"},
		{"Meal", "/api/meals/m1", "/meals/m1", ""},
		{"MealReviews", "/api/meals/m1/reviews", "/reviews/meal/m1", ""},
		{"RecentReviews", "/api/reviews/recent?limit=3", "/reviews/recent", "limit=3"},
		{"Providers", "/api/providers?page=2", "/providers", "page=2"},
		{"Provider", "/api/providers/p1", "/providers/p1", ""},
		{"Categories", "/api/categories", "/categories", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodGet, tt.path, "", "")

			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"id":"x"}`, w.Body.String())
			call := e.upstream.last(t)
			assert.Equal(t, http.MethodGet, call.Method)
			assert.Equal(t, tt.want, call.Path)
			assert.Equal(t, tt.query, call.Query.Encode())
			assert.False(t, call.Auth)
		})
	}
}

func TestBrowse_UpstreamNotFound(t *testing.T) {
	e := newEnv(t)
	e.upstream.err = &foodapi.Error{StatusCode: http.StatusNotFound, Message: "Meal not found"}

	assertError(t, e.do(t, http.MethodGet, "/api/meals/nope", "", ""), http.StatusNotFound, "Meal not found")
}

func TestCreateReview(t *testing.T) {
	e := newEnv(t)

	assertError(t, e.do(t, http.MethodPost, "/api/reviews", "cust", `{"mealId":"m1","rating":6}`),
		http.StatusBadRequest, "rating must be at most 5")
	assertError(t, e.do(t, http.MethodPost, "/api/reviews", "cust", `{"rating":4}`),
		http.StatusBadRequest, "mealId is required")
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/api/reviews", "prov", `{}`).Code)

	w := e.do(t, http.MethodPost, "/api/reviews", "cust", `{"mealId":"m1","rating":5,"comment":" Tasty "}`)

	require.Equal(t, http.StatusCreated, w.Code)
	call := e.upstream.last(t)
	assert.Equal(t, "/v1/reviews", call.Path)
	assert.True(t, call.Auth)
	assert.JSONEq(t, `{"mealId":"m1","rating":5,"comment":"Tasty","customerId":"u1"}`, string(call.Body))
}

func TestMenu(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/provider/meals", "prov", `{"title":" Kacchi ","price":"12.50","categoryId":"c1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	call := e.upstream.last(t)
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/meals", call.Path)
	assert.JSONEq(t,
		`{"title":"Kacchi","description":null,"price":12.50,"currency":"USD","image":null,"isAvailable":true,"categoryId":"c1","userId":"u2"}`,
		string(call.Body))

	w = e.do(t, http.MethodPut, "/api/provider/meals/m7", "prov", `{"title":"Kacchi","price":11,"isAvailable":false,"currency":"bdt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	call = e.upstream.last(t)
	assert.Equal(t, http.MethodPut, call.Method)
	assert.Equal(t, "/meals/m7", call.Path)
	assert.JSONEq(t,
		`{"title":"Kacchi","description":null,"price":11,"currency":"BDT","image":null,"isAvailable":false,"userId":"u2"}`,
		string(call.Body))

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/provider/meals/m7", "prov", "").Code)
	assert.Equal(t, "/meals/m7", e.upstream.last(t).Path)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/provider/meals?page=3", "prov", "").Code)
	call = e.upstream.last(t)
	assert.Equal(t, "/v1/meals/provider/u2", call.Path)
	assert.Equal(t, "limit=25&page=3", call.Query.Encode())

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/provider/meals/m7", "prov", "").Code)
	assert.Equal(t, "/v1/meals/m7", e.upstream.last(t).Path)
}

func TestMenu_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"MissingTitle", `{"price":5}`, "title is required"},
		{"ShortTitle", `{"title":" a ","price":5}`, "title must be at least 2 characters"},
		{"ZeroPrice", `{"title":"Naan"}`, "price must be at least 0.01"},
		{"BadCurrency", `{"title":"Naan","price":1,"currency":"dollars"}`, "currency must be 3 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, e.do(t, http.MethodPost, "/api/provider/meals", "prov", tt.body),
				http.StatusBadRequest, tt.message)
		})
	}
	assert.Empty(t, e.upstream.calls)
}

func TestMenu_RoleGating(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/api/provider/meals", "cust", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodDelete, "/api/provider/meals/m1", "admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/provider/meals", "", "").Code)
	assert.Empty(t, e.upstream.calls)
}

func TestProviderProfile(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/provider/profile", "prov", "").Code)
	assert.Equal(t, "/v1/providers/me", e.upstream.last(t).Path)

	require.Equal(t, http.StatusCreated,
		e.do(t, http.MethodPost, "/api/provider/profile", "prov", `{"name":"Spice Hub","city":"Dhaka"}`).Code)
	call := e.upstream.last(t)
	assert.Equal(t, "/providers", call.Path)
	assert.JSONEq(t, `{"name":"Spice Hub","city":"Dhaka"}`, string(call.Body))

	require.Equal(t, http.StatusOK,
		e.do(t, http.MethodPut, "/api/provider/profile", "prov", `{"name":"Spice Hub 2"}`).Code)
	call = e.upstream.last(t)
	assert.Equal(t, http.MethodPut, call.Method)
	assert.Equal(t, "/providers/prov-1", call.Path)

	assertError(t, e.do(t, http.MethodPost, "/api/provider/profile", "prov", `{"name":"  "}`),
		http.StatusBadRequest, "name is required")
	assertError(t, e.do(t, http.MethodPost, "/api/provider/profile", "prov", `{"name":"A","email":"x"}`),
		http.StatusBadRequest, "email must be a valid email address")
}

func TestAdminCategories(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/admin/categories", "admin", `{"name":"  Desserts "}`).Code)
	call := e.upstream.last(t)
	assert.Equal(t, "/v1/categories", call.Path)
	assert.JSONEq(t, `{"name":"Desserts"}`, string(call.Body))

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/admin/categories/c1", "admin", `{"name":"Sweets"}`).Code)
	assert.Equal(t, "/v1/categories/c1", e.upstream.last(t).Path)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/admin/categories/c1", "admin", "").Code)
	assert.Equal(t, http.MethodDelete, e.upstream.last(t).Method)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/categories?search=swe", "admin", "").Code)
	call = e.upstream.last(t)
	assert.Equal(t, "/categories/admin", call.Path)
	assert.Equal(t, "limit=25&page=1&search=swe", call.Query.Encode())

	assertError(t, e.do(t, http.MethodPost, "/api/admin/categories", "admin", `{"name":" "}`),
		http.StatusBadRequest, "name is required")
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/api/admin/categories", "prov", `{"name":"x"}`).Code)
}

func TestAdminUsers(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, "/api/admin/users/u9", "admin", `{"role":"PROVIDER"}`).Code)
	call := e.upstream.last(t)
	assert.Equal(t, http.MethodPatch, call.Method)
	assert.Equal(t, "/v1/users/admin/u9", call.Path)
	assert.JSONEq(t, `{"role":"PROVIDER"}`, string(call.Body))

	assertError(t, e.do(t, http.MethodPatch, "/api/admin/users/u9", "admin", `{"role":"OWNER"}`),
		http.StatusBadRequest, "role must be one of CUSTOMER, PROVIDER, ADMIN")
	assertError(t, e.do(t, http.MethodPatch, "/api/admin/users/u3", "admin", `{"role":"CUSTOMER"}`),
		http.StatusBadRequest, "you cannot change your own role")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/users?limit=10", "admin", "").Code)
	assert.Equal(t, "limit=10&page=1", e.upstream.last(t).Query.Encode())
	assertError(t, e.do(t, http.MethodGet, "/api/admin/users?page=x", "admin", ""),
		http.StatusBadRequest, "invalid list query")

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/admin/users", "cust", "").Code)
}
