package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/catalog"
	"github.com/xenking/foodhub-storefront/internal/domain/checkout"
	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
	"github.com/xenking/foodhub-storefront/internal/domain/pricing"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
	"github.com/xenking/foodhub-storefront/internal/storage/memory"
	"github.com/xenking/foodhub-storefront/pkg/health"
	"github.com/xenking/foodhub-storefront/pkg/httpmiddleware"
)

// --- Mock implementations ---

type mockSessions struct {
	byToken map[string]*auth.Session
	err     error
}

func (m *mockSessions) GetSession(_ context.Context, cookieHeader string) (*auth.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	for token, s := range m.byToken {
		if strings.Contains(cookieHeader, "="+token) {
			return s, nil
		}
	}
	return nil, nil
}

type mockMeals map[string]*catalog.Meal

func (m mockMeals) GetMeal(_ context.Context, id string) (*catalog.Meal, error) {
	meal, ok := m[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return meal, nil
}

type mockOrders struct {
	mu      sync.Mutex
	created []order.CreateRequest
	// failProvider maps a provider profile id to the error returned for it.
	failProvider map[string]error

	listErr      error
	listed       []order.Order
	providerArg  string
	queryArg     listing.Query
	statusArg    order.Status
	deletedID    string
	providerInfo *foodapi.Provider
}

func (m *mockOrders) CreateOrder(_ context.Context, req order.CreateRequest, _ string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	if req.ProviderProfileID != nil {
		if err := m.failProvider[*req.ProviderProfileID]; err != nil {
			return nil, err
		}
	}
	return &order.Order{ID: "order-" + strconv.Itoa(len(m.created)), Status: order.StatusPlaced}, nil
}

func (m *mockOrders) ListMyOrders(context.Context) ([]order.Order, error) {
	return m.listed, m.listErr
}

func (m *mockOrders) page() (*order.Page, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &order.Page{Orders: m.listed, Pagination: listing.Pagination{TotalItems: len(m.listed)}}, nil
}

func (m *mockOrders) ListProviderOrders(_ context.Context, providerID string, q listing.Query) (*order.Page, error) {
	m.providerArg = providerID
	m.queryArg = q
	return m.page()
}

func (m *mockOrders) ListAllOrders(_ context.Context, q listing.Query) (*order.Page, error) {
	m.queryArg = q
	return m.page()
}

func (m *mockOrders) UpdateOrderStatus(_ context.Context, id string, status order.Status) (*order.Order, error) {
	m.statusArg = status
	return &order.Order{ID: id, Status: status}, nil
}

func (m *mockOrders) DeleteOrder(_ context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockOrders) GetMyProvider(context.Context) (*foodapi.Provider, error) {
	if m.providerInfo == nil {
		return nil, &foodapi.Error{StatusCode: http.StatusNotFound, Message: "Provider profile not found"}
	}
	return m.providerInfo, nil
}

type mockUpstream struct {
	mu    sync.Mutex
	calls []foodapi.Call
	raw   jx.Raw
	err   error
}

func (m *mockUpstream) Forward(_ context.Context, call foodapi.Call) (jx.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.raw, m.err
}

func (m *mockUpstream) last(t *testing.T) foodapi.Call {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.calls)
	return m.calls[len(m.calls)-1]
}

// --- Helpers ---

type env struct {
	router   http.Handler
	orders   *mockOrders
	upstream *mockUpstream
	repo     *memory.CartRepository
}

func available(v bool) *bool { return &v }

func newEnv(t *testing.T, opts ...func(*RouterConfig)) *env {
	t.Helper()

	orders := &mockOrders{
		failProvider: map[string]error{},
		providerInfo: &foodapi.Provider{ID: "prov-1", Name: "Spice Hub"},
	}
	repo := memory.NewCartRepository()
	svc, err := checkout.NewService(orders, pricing.NewCalculator(),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	meals := mockMeals{
		"m1": {ID: "m1", Title: "Biryani", Price: decimal.RequireFromString("9.99"), ProviderProfileID: "p1",
			Provider: &catalog.Provider{ID: "p1", Name: "Spice Hub"}},
		"m2": {ID: "m2", Title: "Naan", Price: decimal.RequireFromString("4.75"), ProviderProfileID: "p2"},
		"m3": {ID: "m3", Title: "Sold out", Price: decimal.RequireFromString("1"), IsAvailable: available(false)},
	}

	upstream := &mockUpstream{raw: jx.Raw(`{"id":"x"}`)}
	h := NewHandler(cart.NewManager(repo), meals, svc, orders, upstream, pricing.NewCalculator())
	cfg := RouterConfig{
		Health: health.New(),
		Sessions: &mockSessions{byToken: map[string]*auth.Session{
			"cust":  {Token: "cust", User: auth.User{ID: "u1", Role: auth.RoleCustomer}},
			"prov":  {Token: "prov", User: auth.User{ID: "u2", Role: auth.RoleProvider}},
			"admin": {Token: "admin", User: auth.User{ID: "u3", Role: auth.RoleAdmin}},
		}},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &env{router: NewRouter(h, cfg), orders: orders, upstream: upstream, repo: repo}
}

func (e *env) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, code int, message string) map[string]any {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, float64(code), body["code"])
	assert.Equal(t, message, body["message"])
	return body
}

// --- Tests ---

func TestRoleGating(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		code   int
	}{
		{"Anonymous", http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{"UnknownToken", http.MethodGet, "/api/cart", "stale", http.StatusUnauthorized},
		{"ProviderOnCart", http.MethodGet, "/api/cart", "prov", http.StatusForbidden},
		{"CustomerOnAdmin", http.MethodGet, "/api/admin/orders", "cust", http.StatusForbidden},
		{"CustomerOnProvider", http.MethodGet, "/api/provider/orders", "cust", http.StatusForbidden},
		{"AdminOnProvider", http.MethodGet, "/api/provider/orders", "admin", http.StatusForbidden},
		{"CustomerOnCart", http.MethodGet, "/api/cart", "cust", http.StatusOK},
		{"ProviderOnProvider", http.MethodGet, "/api/provider/orders", "prov", http.StatusOK},
		{"AdminOnAdmin", http.MethodGet, "/api/admin/orders", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAuthenticate_BearerToken(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer cust")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticate_ResolverError(t *testing.T) {
	e := newEnv(t, func(c *RouterConfig) {
		c.Sessions = &mockSessions{err: errors.New("dial tcp: refused")}
	})

	w := e.do(t, http.MethodGet, "/api/cart", "cust", "")

	assertError(t, w, http.StatusBadGateway, "authentication service unavailable")
}

func TestHealthRoutes(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/livez", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/readyz", "", "").Code)
	assertError(t, e.do(t, http.MethodGet, "/nope", "", ""), http.StatusNotFound, "not found")
}

func TestCart_AddMergeAndPrice(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`).Code)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`).Code)
	w := e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m2"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "m1", first["mealId"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, "p1", first["providerProfileId"])
	assert.Equal(t, "Spice Hub", first["providerName"])
	assert.Equal(t, float64(3), body["totalItems"])

	// 2*9.99 + 4.75 = 24.73; tax 2.473; total 29.203.
	display := body["pricing"].(map[string]any)["display"].(map[string]any)
	assert.Equal(t, "$24.73", display["subtotal"])
	assert.Equal(t, "$2.00", display["deliveryFee"])
	assert.Equal(t, "$2.47", display["tax"])
	assert.Equal(t, "$29.20", display["total"])

	persisted, err := e.repo.Load(context.Background(), cart.Key("u1"))
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestCart_AddItemErrors(t *testing.T) {
	e := newEnv(t)

	assertError(t, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"missing"}`),
		http.StatusNotFound, "meal not found")
	assertError(t, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m3"}`),
		http.StatusUnprocessableEntity, "meal is not available")
	assertError(t, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{}`),
		http.StatusBadRequest, "mealId is required")
	assertError(t, e.do(t, http.MethodPost, "/api/cart/items", "cust", `{`),
		http.StatusBadRequest, "invalid JSON body")
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`)
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m2"}`)

	body := decodeBody(t, e.do(t, http.MethodGet, "/api/cart", "cust", ""))
	items := body["items"].([]any)
	id1 := items[0].(map[string]any)["id"].(string)
	id2 := items[1].(map[string]any)["id"].(string)

	w := e.do(t, http.MethodPatch, "/api/cart/items/"+id1, "cust", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(6), decodeBody(t, w)["totalItems"])

	assertError(t, e.do(t, http.MethodPatch, "/api/cart/items/"+id1, "cust", `{}`),
		http.StatusBadRequest, "quantity is required")

	w = e.do(t, http.MethodPatch, "/api/cart/items/"+id1, "cust", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["totalItems"])

	w = e.do(t, http.MethodDelete, "/api/cart/items/unknown", "cust", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["totalItems"])

	w = e.do(t, http.MethodDelete, "/api/cart/items/"+id2, "cust", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Empty(t, body["items"])
	assert.NotNil(t, body["items"])

	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`)
	w = e.do(t, http.MethodDelete, "/api/cart", "cust", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["totalItems"])

	_, err := e.repo.Load(context.Background(), cart.Key("u1"))
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

const validForm = `{"name":"Ayesha","phone":"+8801700000000","address":"12 Lake Road","city":"Dhaka"}`

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/checkout", "cust", validForm)

	assertError(t, w, http.StatusUnprocessableEntity, "your cart is empty: browse meals to add items")
	assert.Empty(t, e.orders.created)
}

func TestCheckout_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"MissingPhone", `{"name":"A","address":"x","city":"y"}`, "phone is required"},
		{"MissingCity", `{"name":"A","phone":"1","address":"x"}`, "city is required"},
		{"BadEmail", `{"name":"A","email":"nope","phone":"1","address":"x","city":"y"}`,
			"email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, e.do(t, http.MethodPost, "/api/checkout", "cust", tt.body),
				http.StatusBadRequest, tt.message)
		})
	}
}

func TestCheckout_Success(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`)
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m2"}`)

	w := e.do(t, http.MethodPost, "/api/checkout", "cust",
		`{"name":"Ayesha","email":"a@example.com","phone":"1","address":"12 Lake Road","city":"Dhaka"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Len(t, body["orders"], 2)
	require.Len(t, e.orders.created, 2)
	for _, req := range e.orders.created {
		assert.Equal(t, "12 Lake Road, Dhaka", req.DeliveryAddress)
	}

	cartBody := decodeBody(t, e.do(t, http.MethodGet, "/api/cart", "cust", ""))
	assert.Equal(t, float64(0), cartBody["totalItems"])
}

func TestCheckout_PartialFailure(t *testing.T) {
	e := newEnv(t)
	e.orders.failProvider["p2"] = &foodapi.Error{StatusCode: http.StatusUnprocessableEntity, Message: "Meal unavailable"}
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m1"}`)
	e.do(t, http.MethodPost, "/api/cart/items", "cust", `{"mealId":"m2"}`)

	w := e.do(t, http.MethodPost, "/api/checkout", "cust", validForm)

	body := assertError(t, w, http.StatusBadGateway, "Failed to place order")
	assert.Equal(t, "Meal unavailable", body["description"])

	cartBody := decodeBody(t, e.do(t, http.MethodGet, "/api/cart", "cust", ""))
	assert.Equal(t, float64(2), cartBody["totalItems"])
}

func TestCheckout_RateLimited(t *testing.T) {
	e := newEnv(t, func(c *RouterConfig) {
		c.CheckoutLimit = httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:     1,
			Window:  time.Minute,
			KeyFunc: UserKey,
		})
	})

	first := e.do(t, http.MethodPost, "/api/checkout", "cust", validForm)
	assert.Equal(t, http.StatusUnprocessableEntity, first.Code)

	second := e.do(t, http.MethodPost, "/api/checkout", "cust", validForm)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Cart routes are not limited.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/cart", "cust", "").Code)
}

func TestOrders_History(t *testing.T) {
	e := newEnv(t)
	e.orders.listed = []order.Order{{ID: "o1", Status: order.StatusDelivered}}

	w := e.do(t, http.MethodGet, "/api/orders", "cust", "")

	require.Equal(t, http.StatusOK, w.Code)
	var orders []order.Order
	require.NoError(t, json.NewDecoder(w.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.StatusDelivered, orders[0].Status)
}

func TestOrders_UpstreamErrors(t *testing.T) {
	e := newEnv(t)

	e.orders.listErr = &foodapi.Error{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error"}
	assertError(t, e.do(t, http.MethodGet, "/api/orders", "cust", ""),
		http.StatusBadGateway, "Internal Server Error")

	e.orders.listErr = &foodapi.Error{StatusCode: http.StatusNotFound, Message: "No orders"}
	assertError(t, e.do(t, http.MethodGet, "/api/admin/orders", "admin", ""),
		http.StatusNotFound, "No orders")
}

func TestProviderOrders(t *testing.T) {
	e := newEnv(t)

	e.orders.listed = []order.Order{{ID: "o1", Status: order.StatusPlaced}}
	w := e.do(t, http.MethodGet, "/api/provider/orders?page=2&search=%20ayesha", "prov", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prov-1", e.orders.providerArg)
	assert.Equal(t, listing.Query{Limit: listing.DefaultLimit, Page: 2, Search: "ayesha"}, e.orders.queryArg)
	var page order.Page
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.Len(t, page.Orders, 1)
	assert.Equal(t, 1, page.Pagination.TotalItems)

	assertError(t, e.do(t, http.MethodGet, "/api/provider/orders?limit=0", "prov", ""),
		http.StatusBadRequest, "invalid list query")

	w = e.do(t, http.MethodPatch, "/api/provider/orders/o1", "prov", `{"status":"READY"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.StatusReady, e.orders.statusArg)

	assertError(t, e.do(t, http.MethodPatch, "/api/provider/orders/o1", "prov", `{"status":"SHIPPED"}`),
		http.StatusBadRequest, "invalid order status")

	e.orders.providerInfo = nil
	assertError(t, e.do(t, http.MethodGet, "/api/provider/orders", "prov", ""),
		http.StatusNotFound, "Provider profile not found")
}

func TestAdminDeleteOrder(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodDelete, "/api/admin/orders/o9", "admin", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "o9", e.orders.deletedID)
}
