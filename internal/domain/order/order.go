package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/listing"
)

// Status is the fulfillment state of an order on the FoodHub backend.
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidStatus is returned when parsing an unknown status value.
var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus validates s as an order status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPlaced, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusPlaced:
		return "Placed"
	case StatusPreparing:
		return "Preparing"
	case StatusReady:
		return "Ready"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CreateRequest is the body of an order-creation call. An order is always
// scoped to one provider; a nil ProviderProfileID means the provider is
// unknown to the client.
type CreateRequest struct {
	DeliveryAddress   string
	Items             []CreateItem
	ProviderProfileID *string
}

// CreateItem is a line of a CreateRequest.
type CreateItem struct {
	MealID    string
	MealTitle string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Order is the backend representation of a placed order.
type Order struct {
	ID              string          `json:"id"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	PlacedAt        time.Time       `json:"placedAt"`
	Items           []Item          `json:"items,omitempty"`
	Provider        *Provider       `json:"provider,omitempty"`
	Customer        *Customer       `json:"customer,omitempty"`
}

// Item is a line of a placed order.
type Item struct {
	ID        string          `json:"id"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Meal      *Meal           `json:"meal,omitempty"`
}

// Meal is the meal reference embedded in an order line.
type Meal struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}

// Provider is the provider reference embedded in an order.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Customer is the customer reference embedded in a provider's view of an order.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Page is one page of a provider or admin order list.
type Page struct {
	Orders     []Order            `json:"orders"`
	Pagination listing.Pagination `json:"pagination"`
}
