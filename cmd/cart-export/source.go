package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/storage/postgres"
	redisstore "github.com/xenking/foodhub-storefront/internal/storage/redis"
)

// record is one exported cart, written as a single NDJSON line.
type record struct {
	Key         string          `json:"key"`
	Fingerprint string          `json:"fingerprint"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	TotalItems  int             `json:"totalItems"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Items       []cart.Item     `json:"items"`
}

func newRecord(key string, items []cart.Item, updatedAt time.Time) (record, error) {
	fp, err := fingerprint(key, items)
	if err != nil {
		return record{}, err
	}
	snap := cart.Snapshot{Items: items}
	return record{
		Key:         key,
		Fingerprint: fp,
		UpdatedAt:   updatedAt.UTC(),
		TotalItems:  snap.TotalItems(),
		TotalPrice:  snap.TotalPrice(),
		Items:       items,
	}, nil
}

// fingerprint identifies a cart's content: the same key with the same items
// always yields the same value.
func fingerprint(key string, items []cart.Item) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrapf(err, "marshal items of %s", key)
	}
	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte{'\n'})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// source enumerates persisted carts last updated before a cutoff.
type source interface {
	Each(ctx context.Context, before time.Time, fn func(record) error) error
}

type redisSource struct {
	repo *redisstore.CartRepository
}

func (s redisSource) Each(ctx context.Context, before time.Time, fn func(record) error) error {
	return s.repo.ScanKeys(ctx, func(key string) error {
		data, err := s.repo.LoadDocument(ctx, key)
		if errors.Is(err, cart.ErrNotFound) {
			// Expired between SCAN and GET.
			return nil
		}
		if err != nil {
			return err
		}
		doc, err := redisstore.DecodeDocument(data)
		if err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		if !doc.UpdatedAt.Before(before) {
			return nil
		}
		rec, err := newRecord(key, doc.Items, doc.UpdatedAt)
		if err != nil {
			return err
		}
		return fn(rec)
	})
}

type postgresSource struct {
	repo *postgres.CartRepository
}

func (s postgresSource) Each(ctx context.Context, before time.Time, fn func(record) error) error {
	carts, err := s.repo.ListStale(ctx, before)
	if err != nil {
		return err
	}
	for _, c := range carts {
		items, err := s.repo.Load(ctx, c.Key)
		if errors.Is(err, cart.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "load %s", c.Key)
		}
		rec, err := newRecord(c.Key, items, c.UpdatedAt)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
