// Package listing holds the paging parameters shared by the dashboard lists
// of the FoodHub API.
package listing

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 25

// MaxLimit caps the page size a caller may ask for.
const MaxLimit = 100

// ErrInvalidQuery is returned for a malformed page or limit.
var ErrInvalidQuery = errors.New("invalid list query")

// Query pages and filters a list.
type Query struct {
	Limit  int
	Page   int
	Search string
}

// ParseQuery reads limit, page and search from v. Missing values take the
// defaults; non-numeric or non-positive values are rejected.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Limit:  DefaultLimit,
		Page:   1,
		Search: strings.TrimSpace(v.Get("search")),
	}
	var err error
	if q.Limit, err = positive(v, "limit", DefaultLimit); err != nil {
		return Query{}, err
	}
	if q.Page, err = positive(v, "page", 1); err != nil {
		return Query{}, err
	}
	q.Limit = min(q.Limit, MaxLimit)
	return q, nil
}

func positive(v url.Values, key string, def int) (int, error) {
	s := v.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.Wrapf(ErrInvalidQuery, "%s must be a positive integer", key)
	}
	return n, nil
}

// Values renders q as query parameters. An empty search is omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// Pagination locates a page within the full list.
type Pagination struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages,omitempty"`
	CurrentPage int `json:"currentPage,omitempty"`
	Limit       int `json:"limit,omitempty"`
}
