// Package redis stores carts in Redis as JSON documents.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// Document is the stored form of a cart.
type Document struct {
	Items     []cart.Item `json:"items"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// CartRepository implements cart.Repository on Redis. Each cart is one key
// holding a Document; a positive TTL expires abandoned carts.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewCartRepository creates a CartRepository. A zero ttl keeps carts forever.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Load returns cart.ErrNotFound when the key does not exist.
func (r *CartRepository) Load(ctx context.Context, key string) ([]cart.Item, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func (r *CartRepository) Save(ctx context.Context, key string, items []cart.Item) error {
	data, err := json.Marshal(Document{Items: items, UpdatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ScanKeys calls fn for every stored cart key.
func (r *CartRepository) ScanKeys(ctx context.Context, fn func(key string) error) error {
	iter := r.client.Scan(ctx, 0, cart.StoreName+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return nil
}

// LoadDocument returns the raw stored document of key.
func (r *CartRepository) LoadDocument(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a stored cart.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return doc, nil
}
