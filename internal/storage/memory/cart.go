// Package memory keeps carts in process memory.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository is an in-memory cart.Repository. Contents are lost on
// restart.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]cart.Item
}

// NewCartRepository creates an empty repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string][]cart.Item)}
}

func (r *CartRepository) Load(_ context.Context, key string) ([]cart.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items, ok := r.carts[key]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return slices.Clone(items), nil
}

func (r *CartRepository) Save(_ context.Context, key string, items []cart.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[key] = slices.Clone(items)
	return nil
}

func (r *CartRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, key)
	return nil
}

// Ping always succeeds.
func (r *CartRepository) Ping(context.Context) error { return nil }
