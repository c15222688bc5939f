package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/foodhub-storefront/internal/domain/catalog"
	"github.com/xenking/foodhub-storefront/internal/domain/checkout"
	"github.com/xenking/foodhub-storefront/internal/domain/listing"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
)

const maxBodyBytes = 1 << 20

// Messages shown to the customer.
const (
	msgCartEmpty   = "your cart is empty: browse meals to add items"
	msgOrderFailed = "Failed to place order"
)

var errInvalidBody = errors.New("invalid JSON body")

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Encode response", zap.Error(err))
	}
}

// writeError writes the {code, message} error body, plus an optional
// description.
func writeError(w http.ResponseWriter, code int, message string, description ...string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if len(description) > 0 {
			e.Field("description", func(e *jx.Encoder) { e.Str(description[0]) })
		}
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// writeRaw writes an API payload unchanged. An empty payload is written as
// null.
func writeRaw(w http.ResponseWriter, status int, raw jx.Raw) {
	if len(raw) == 0 {
		raw = jx.Raw("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// normalizer trims a decoded form before validation.
type normalizer interface {
	normalize()
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}
	return h.validate.Struct(v)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, _ := f.Interface().(decimal.Decimal)
		return d.InexactFloat64()
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage describes the first failed field.
func validationMessage(errs validator.ValidationErrors) string {
	fe := errs[0]
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param() + unit
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param() + unit
	case "len":
		return fe.Field() + " must be " + fe.Param() + " characters long"
	case "oneof":
		return fe.Field() + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fe.Field() + " is invalid"
	}
}

// fail maps a domain or API error to an HTTP response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs  validator.ValidationErrors
		subErr *checkout.SubmissionError
		apiErr *foodapi.Error
	)
	switch {
	case errors.Is(err, errInvalidBody):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, validationMessage(verrs))
	case errors.Is(err, listing.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, listing.ErrInvalidQuery.Error())
	case errors.Is(err, order.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, order.ErrInvalidStatus.Error())
	case errors.Is(err, checkout.ErrCartEmpty):
		writeError(w, http.StatusUnprocessableEntity, msgCartEmpty)
	case errors.As(err, &subErr):
		writeError(w, http.StatusBadGateway, msgOrderFailed, subErr.Message)
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, catalog.ErrNotFound.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		writeError(w, http.StatusUnprocessableEntity, catalog.ErrUnavailable.Error())
	case errors.Is(err, foodapi.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		writeError(w, http.StatusServiceUnavailable, "FoodHub service is temporarily unavailable")
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			writeError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		zctx.From(r.Context()).Error("FoodHub API failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, apiErr.Message)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
