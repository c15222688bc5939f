package foodapi

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// unwrapData returns the "data" member of a {success, data, message}
// response. A body without a data member is treated as bare data.
func unwrapData(body []byte) (jx.Raw, error) {
	if len(body) == 0 {
		return nil, nil
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return jx.Raw(body), nil
	}
	var (
		data  jx.Raw
		found bool
	)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		v, err := d.Raw()
		data, found = v, true
		return err
	}); err != nil {
		return nil, err
	}
	if !found {
		return jx.Raw(body), nil
	}
	return data, nil
}

// decodeData unmarshals the envelope payload into v. A missing or null
// payload leaves v untouched.
func decodeData(raw jx.Raw, v any) error {
	if len(raw) == 0 || raw.Type() == jx.Null {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached to ctx.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}
