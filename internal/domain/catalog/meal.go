package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested meal does not exist.
	ErrNotFound = errors.New("meal not found")
	// ErrUnavailable is returned when a meal exists but cannot be ordered.
	ErrUnavailable = errors.New("meal is not available")
)

// Meal represents a catalog item offered by a provider.
type Meal struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Image             string          `json:"image,omitempty"`
	IsAvailable       *bool           `json:"isAvailable,omitempty"`
	ProviderProfileID string          `json:"providerProfileId,omitempty"`
	Provider          *Provider       `json:"provider,omitempty"`
}

// Provider is the owning provider embedded in a meal.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Available reports whether the meal may be ordered. Meals without an
// explicit flag are available.
func (m Meal) Available() bool {
	return m.IsAvailable == nil || *m.IsAvailable
}

// ProviderID returns the owning provider, preferring the explicit profile id.
func (m Meal) ProviderID() string {
	if m.ProviderProfileID != "" {
		return m.ProviderProfileID
	}
	if m.Provider != nil {
		return m.Provider.ID
	}
	return ""
}

// Repository defines read operations for the meal catalog.
type Repository interface {
	GetMeal(ctx context.Context, id string) (*Meal, error)
}
