package foodapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/foodhub-storefront/internal/domain/auth"
)

// DefaultAuthURL is the hosted auth service.
const DefaultAuthURL = "https://foodhub-api.tariqul.dev"

var _ auth.Resolver = (*SessionClient)(nil)

// SessionClient resolves sessions against the hosted auth service.
type SessionClient struct {
	url  string
	http *http.Client
}

// NewSessionClient creates a SessionClient for the auth service at authURL.
func NewSessionClient(authURL string, cfg Config) *SessionClient {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	return &SessionClient{
		url:  strings.TrimSuffix(authURL, "/") + "/api/auth/get-session",
		http: newHTTPClient(cfg),
	}
}

type sessionPayload struct {
	Session *struct {
		Token string `json:"token"`
	} `json:"session"`
	User *auth.User `json:"user"`
}

// GetSession forwards the cookie header to the auth service. A response
// without a session or user, or a 401 or 403 for a stale cookie, yields a
// nil session.
func (c *SessionClient) GetSession(ctx context.Context, cookieHeader string) (*auth.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Cookie", cookieHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil
	default:
		return nil, newError(resp.StatusCode, body)
	}

	var p sessionPayload
	if len(body) == 0 || strings.TrimSpace(string(body)) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if p.Session == nil || p.User == nil {
		return nil, nil
	}
	return &auth.Session{Token: p.Session.Token, User: *p.User}, nil
}
