package auth

import (
	"context"
)

// Role is the account type of a FoodHub user.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleProvider Role = "PROVIDER"
	RoleCustomer Role = "CUSTOMER"
)

// User is the identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is an authenticated session issued by the hosted auth service.
type Session struct {
	Token string
	User  User
}

// Resolver resolves a session from the raw cookie header of an incoming
// request. It returns a nil session, not an error, for anonymous requests.
type Resolver interface {
	GetSession(ctx context.Context, cookieHeader string) (*Session, error)
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
