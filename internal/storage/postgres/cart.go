package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT items FROM carts WHERE key = $1`

	saveCartSQL = `INSERT INTO carts (key, items, total_items, total_price, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (key) DO UPDATE
	SET items = EXCLUDED.items,
		total_items = EXCLUDED.total_items,
		total_price = EXCLUDED.total_price,
		updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE key = $1`

	listStaleSQL = `SELECT key, total_items, total_price, updated_at FROM carts
	WHERE updated_at < $1 ORDER BY updated_at`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Items are
// kept in a JSONB column next to denormalized totals.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load returns cart.ErrNotFound when no row exists for key.
func (r *CartRepository) Load(ctx context.Context, key string) ([]cart.Item, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, loadCartSQL, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("loading cart %q: %w", key, err)
	}

	var items []cart.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return items, nil
}

// Save upserts the cart row.
func (r *CartRepository) Save(ctx context.Context, key string, items []cart.Item) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	snap := cart.Snapshot{Items: items}
	if _, err := r.pool.Exec(ctx, saveCartSQL,
		key, itemsJSON, snap.TotalItems(), snap.TotalPrice(),
	); err != nil {
		return fmt.Errorf("saving cart %q: %w", key, err)
	}
	return nil
}

// Delete removes the cart row; deleting a missing row is not an error.
func (r *CartRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, key); err != nil {
		return fmt.Errorf("deleting cart %q: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Summary is a persisted cart without its items.
type Summary struct {
	Key        string
	TotalItems int
	TotalPrice decimal.Decimal
	UpdatedAt  time.Time
}

// ListStale returns carts not updated since before.
func (r *CartRepository) ListStale(ctx context.Context, before time.Time) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, listStaleSQL, before)
	if err != nil {
		return nil, fmt.Errorf("listing stale carts: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(&s.Key, &s.TotalItems, &s.TotalPrice, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning stale carts: %w", err)
	}
	return out, nil
}
