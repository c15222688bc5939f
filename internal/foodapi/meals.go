package foodapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/xenking/foodhub-storefront/internal/domain/catalog"
)

var _ catalog.Repository = (*Client)(nil)

// GetMeal fetches a meal by id. A 404 maps to catalog.ErrNotFound.
func (c *Client) GetMeal(ctx context.Context, id string) (*catalog.Meal, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: "/meals/" + url.PathEscape(id)})
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get meal %s", id)
	}
	var m catalog.Meal
	if err := decodeData(raw, &m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, catalog.ErrNotFound
	}
	return &m, nil
}

// Provider is the provider profile of the calling user.
type Provider struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId,omitempty"`
}

// GetMyProvider returns the provider profile owned by the caller.
func (c *Client) GetMyProvider(ctx context.Context) (*Provider, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: "/v1/providers/me", auth: true})
	if err != nil {
		return nil, errors.Wrap(err, "get provider profile")
	}
	var p Provider
	if err := decodeData(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
