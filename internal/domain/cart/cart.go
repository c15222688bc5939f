package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// StoreName is the fixed name under which carts are persisted.
const StoreName = "food-hub-cart"

// ErrNotFound is returned by a Repository when no cart is persisted under a key.
var ErrNotFound = errors.New("cart not found")

// Item is a single meal and its quantity within a customer's cart.
type Item struct {
	ID           string          `json:"id"`
	MealID       string          `json:"mealId"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	ImageRef     string          `json:"image,omitempty"`
	ProviderID   string          `json:"providerProfileId,omitempty"`
	ProviderName string          `json:"providerName,omitempty"`
}

// Subtotal returns unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Candidate describes a meal being added to the cart.
type Candidate struct {
	MealID       string
	Title        string
	UnitPrice    decimal.Decimal
	ImageRef     string
	ProviderID   string
	ProviderName string
}

// Snapshot is an immutable copy of the cart contents in insertion order.
type Snapshot struct {
	Items []Item
}

// IsEmpty reports whether the snapshot has no items.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// TotalItems returns the sum of all quantities.
func (s Snapshot) TotalItems() int {
	total := 0
	for _, it := range s.Items {
		total += it.Quantity
	}
	return total
}

// TotalPrice returns the sum of unit price times quantity over all items.
// No rounding is applied.
func (s Snapshot) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Repository persists cart contents under a key.
type Repository interface {
	// Load returns ErrNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) ([]Item, error)
	Save(ctx context.Context, key string, items []Item) error
	Delete(ctx context.Context, key string) error
}

// Key returns the persistence key of the cart owned by userID.
func Key(userID string) string {
	return StoreName + ":" + userID
}
