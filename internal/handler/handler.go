// Package handler serves the storefront JSON API on a chi router.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/catalog"
	"github.com/xenking/foodhub-storefront/internal/domain/checkout"
	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
	"github.com/xenking/foodhub-storefront/internal/domain/pricing"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
	"github.com/xenking/foodhub-storefront/pkg/health"
	"github.com/xenking/foodhub-storefront/pkg/httpmiddleware"
)

// Carts hands out the live cart of a customer.
type Carts interface {
	Get(ctx context.Context, userID string) (*cart.Store, error)
}

// Orders is the order management part of the FoodHub API.
type Orders interface {
	ListMyOrders(ctx context.Context) ([]order.Order, error)
	ListProviderOrders(ctx context.Context, providerID string, q listing.Query) (*order.Page, error)
	ListAllOrders(ctx context.Context, q listing.Query) (*order.Page, error)
	UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetMyProvider(ctx context.Context) (*foodapi.Provider, error)
}

// Upstream forwards the catalog, menu and account management calls whose
// payloads the storefront does not interpret.
type Upstream interface {
	Forward(ctx context.Context, call foodapi.Call) (jx.Raw, error)
}

// Handler implements the storefront routes.
type Handler struct {
	carts    Carts
	meals    catalog.Repository
	checkout *checkout.Service
	orders   Orders
	upstream Upstream
	pricing  pricing.Calculator
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts Carts,
	meals catalog.Repository,
	checkoutService *checkout.Service,
	orders Orders,
	upstream Upstream,
	calc pricing.Calculator,
) *Handler {
	return &Handler{
		carts:    carts,
		meals:    meals,
		checkout: checkoutService,
		orders:   orders,
		upstream: upstream,
		pricing:  calc,
		validate: newValidator(),
	}
}

// RouterConfig holds the collaborators of the router that are not handlers.
type RouterConfig struct {
	Health   *health.Health
	Sessions auth.Resolver
	// CheckoutLimit guards POST /api/checkout; it runs after authentication
	// so it can key on the user.
	CheckoutLimit httpmiddleware.Middleware
}

// NewRouter mounts the health endpoints and the API on a chi router.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.LogRequests(),
		httpmiddleware.Label(),
	)

	if cfg.Health != nil {
		r.Get("/livez", cfg.Health.LiveEndpoint)
		r.Get("/readyz", cfg.Health.ReadyEndpoint)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(cfg.Sessions))

		// Public browsing.
		r.Get("/meals", h.ListMeals)
		r.Get("/meals/{id}", h.GetMeal)
		r.Get("/meals/{id}/reviews", h.ListMealReviews)
		r.Get("/reviews/recent", h.ListRecentReviews)
		r.Get("/providers", h.ListProviders)
		r.Get("/providers/{id}", h.GetProvider)
		r.Get("/categories", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleCustomer))

			r.Get("/cart", h.GetCart)
			r.Delete("/cart", h.ClearCart)
			r.Post("/cart/items", h.AddItem)
			r.Patch("/cart/items/{id}", h.UpdateItem)
			r.Delete("/cart/items/{id}", h.RemoveItem)

			checkoutRoute := r
			if cfg.CheckoutLimit != nil {
				checkoutRoute = r.With(cfg.CheckoutLimit)
			}
			checkoutRoute.Post("/checkout", h.Checkout)

			r.Get("/orders", h.ListMyOrders)
			r.Post("/reviews", h.CreateReview)
		})

		r.Route("/provider", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleProvider))
			r.Get("/orders", h.ListProviderOrders)
			r.Patch("/orders/{id}", h.UpdateOrderStatus)

			r.Get("/meals", h.ListMenu)
			r.Post("/meals", h.CreateMenuItem)
			r.Get("/meals/{id}", h.GetMenuItem)
			r.Put("/meals/{id}", h.UpdateMenuItem)
			r.Delete("/meals/{id}", h.DeleteMenuItem)

			r.Get("/profile", h.GetProviderProfile)
			r.Post("/profile", h.CreateProviderProfile)
			r.Put("/profile", h.UpdateProviderProfile)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))
			r.Get("/orders", h.ListAllOrders)
			r.Delete("/orders/{id}", h.DeleteOrder)

			r.Get("/users", h.ListUsers)
			r.Patch("/users/{id}", h.UpdateUserRole)

			r.Get("/categories", h.ListAdminCategories)
			r.Post("/categories", h.CreateCategory)
			r.Put("/categories/{id}", h.RenameCategory)
			r.Delete("/categories/{id}", h.DeleteCategory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
