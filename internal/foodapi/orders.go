package foodapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
)

// encodeCreateRequest renders the order-creation body. Unit prices are
// written as raw decimal numbers and a missing provider as explicit null.
func encodeCreateRequest(req order.CreateRequest) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("deliveryAddress")
	e.Str(req.DeliveryAddress)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range req.Items {
		e.ObjStart()
		e.FieldStart("mealId")
		e.Str(it.MealID)
		e.FieldStart("mealTitle")
		e.Str(it.MealTitle)
		e.FieldStart("unitPrice")
		e.Num(jx.Num(it.UnitPrice.String()))
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("providerProfileId")
	if req.ProviderProfileID != nil {
		e.Str(*req.ProviderProfileID)
	} else {
		e.Null()
	}
	e.ObjEnd()
	return e.Bytes()
}

// CreateOrder places one order. A non-empty idempotencyKey is sent in the
// Idempotency-Key header.
func (c *Client) CreateOrder(ctx context.Context, req order.CreateRequest, idempotencyKey string) (*order.Order, error) {
	r := request{
		method: http.MethodPost,
		path:   "/orders",
		body:   encodeCreateRequest(req),
		auth:   true,
	}
	if idempotencyKey != "" {
		r.header = http.Header{IdempotencyHeader: []string{idempotencyKey}}
	}
	raw, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	var o order.Order
	if err := decodeData(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListMyOrders returns the caller's order history.
func (c *Client) ListMyOrders(ctx context.Context) ([]order.Order, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: "/v1/orders", auth: true})
	if err != nil {
		return nil, err
	}
	orders := []order.Order{}
	if err := decodeData(raw, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListProviderOrders returns a page of the orders placed with a provider.
func (c *Client) ListProviderOrders(ctx context.Context, providerID string, q listing.Query) (*order.Page, error) {
	return c.listOrderPage(ctx, "/orders/provider/"+url.PathEscape(providerID), q)
}

// ListAllOrders returns a page of every order; admin only.
func (c *Client) ListAllOrders(ctx context.Context, q listing.Query) (*order.Page, error) {
	return c.listOrderPage(ctx, "/v1/orders/admin", q)
}

// listOrderPage reads a {orders, pagination} payload.
func (c *Client) listOrderPage(ctx context.Context, path string, q listing.Query) (*order.Page, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: path, query: q.Values(), auth: true})
	if err != nil {
		return nil, err
	}
	var page order.Page
	if err := decodeData(raw, &page); err != nil {
		return nil, err
	}
	if page.Orders == nil {
		page.Orders = []order.Order{}
	}
	return &page, nil
}

// UpdateOrderStatus changes the status of an order.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(status)) })
	})
	raw, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/orders/" + url.PathEscape(id),
		body:   e.Bytes(),
		auth:   true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s", id)
	}
	var o order.Order
	if err := decodeData(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	if _, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/orders/" + url.PathEscape(id),
		auth:   true,
	}); err != nil {
		return errors.Wrapf(err, "delete order %s", id)
	}
	return nil
}
