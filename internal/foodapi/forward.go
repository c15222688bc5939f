package foodapi

import (
	"context"
	"net/url"

	"github.com/go-faster/jx"
)

// Call is a request whose payload the storefront passes through without
// interpreting it.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	// Auth requires the caller's token in the context.
	Auth bool
}

// Forward performs call through the circuit breaker and returns the raw
// "data" payload of the response.
func (c *Client) Forward(ctx context.Context, call Call) (jx.Raw, error) {
	return c.do(ctx, request{
		method: call.Method,
		path:   call.Path,
		query:  call.Query,
		body:   call.Body,
		auth:   call.Auth,
	})
}
