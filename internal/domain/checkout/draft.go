package checkout

import (
	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
)

// UnknownProvider is the group key for items without a provider.
const UnknownProvider = "unknown"

// Address is the delivery address entered at checkout.
type Address struct {
	Street string
	City   string
}

// String renders the address the way the order API stores it.
func (a Address) String() string {
	return a.Street + ", " + a.City
}

// Draft is the subset of a cart owned by one provider. ProviderID is nil for
// the unknown group.
type Draft struct {
	Key        string
	ProviderID *string
	Items      []cart.Item
}

// Partition groups items by provider in order of first appearance. Items
// without a provider share the UnknownProvider group.
func Partition(items []cart.Item) []Draft {
	var drafts []Draft
	index := make(map[string]int)
	for _, it := range items {
		key := it.ProviderID
		if key == "" {
			key = UnknownProvider
		}
		i, ok := index[key]
		if !ok {
			d := Draft{Key: key}
			if it.ProviderID != "" {
				id := it.ProviderID
				d.ProviderID = &id
			}
			drafts = append(drafts, d)
			i = len(drafts) - 1
			index[key] = i
		}
		drafts[i].Items = append(drafts[i].Items, it)
	}
	return drafts
}

// BuildRequest converts a draft into an order-creation request. Unit prices
// are sent unrounded.
func BuildRequest(addr Address, d Draft) order.CreateRequest {
	req := order.CreateRequest{
		DeliveryAddress:   addr.String(),
		Items:             make([]order.CreateItem, 0, len(d.Items)),
		ProviderProfileID: d.ProviderID,
	}
	for _, it := range d.Items {
		req.Items = append(req.Items, order.CreateItem{
			MealID:    it.MealID,
			MealTitle: it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return req
}
