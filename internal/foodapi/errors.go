package foodapi

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrUnauthorized is returned when an authenticated call is made without a
// token in the context.
var ErrUnauthorized = errors.New("unauthorized: no session token")

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("foodhub api: %d: %s", e.StatusCode, e.Message)
}

// PublicMessage returns the message safe to show to a user.
func (e *Error) PublicMessage() string {
	return e.Message
}

// newError builds an Error from a failed response. The message is the
// payload "message" when it is a string, else the status text.
func newError(status int, body []byte) *Error {
	msg := payloadMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "Request failed"
	}
	return &Error{StatusCode: status, Message: msg}
}

func payloadMessage(body []byte) string {
	var msg string
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "message" || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		msg = s
		return nil
	})
	return msg
}
