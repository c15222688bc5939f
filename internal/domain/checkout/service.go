package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/order"
	"github.com/xenking/foodhub-storefront/internal/domain/pricing"
)

// FallbackMessage is reported when a failed submission carries no message.
const FallbackMessage = "Please try again later"

// ErrCartEmpty is returned when checkout is attempted with no items.
var ErrCartEmpty = errors.New("cart is empty")

// SubmissionError indicates that at least one provider group failed. The cart
// is left untouched.
type SubmissionError struct {
	Message   string
	Failed    int
	Total     int
	Succeeded []string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit orders: %d of %d failed: %s", e.Failed, e.Total, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submitter creates one order on the order API.
type Submitter interface {
	CreateOrder(ctx context.Context, req order.CreateRequest, idempotencyKey string) (*order.Order, error)
}

// Cart is the part of a cart store checkout needs.
type Cart interface {
	Snapshot() cart.Snapshot
	ClearCart(ctx context.Context) error
}

// Result holds the orders created by a successful checkout.
type Result struct {
	Orders  []*order.Order
	Summary pricing.Summary
}

// Service converts a cart into one order per provider.
type Service struct {
	orders  Submitter
	pricing pricing.Calculator
	tracer  trace.Tracer

	checkouts   metric.Int64Counter
	submissions metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(orders Submitter, calc pricing.Calculator, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter("foodhub/checkout")
	checkouts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout counter")
	}
	submissions, err := meter.Int64Counter("checkout.submissions",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "submission counter")
	}
	return &Service{
		orders:      orders,
		pricing:     calc,
		tracer:      tp.Tracer("foodhub/checkout"),
		checkouts:   checkouts,
		submissions: submissions,
	}, nil
}

type submission struct {
	draft Draft
	order *order.Order
	err   error
}

// Checkout submits every provider group of c concurrently and waits for all
// of them. The cart is cleared only when every group succeeds.
func (s *Service) Checkout(ctx context.Context, customerID string, c Cart, addr Address) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer func() {
		outcome := "success"
		switch {
		case errors.Is(rerr, ErrCartEmpty):
			outcome = "empty"
		case rerr != nil:
			outcome = "failed"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	snap := c.Snapshot()
	if snap.IsEmpty() {
		return nil, ErrCartEmpty
	}

	drafts := Partition(snap.Items)
	span.SetAttributes(attribute.Int("checkout.groups", len(drafts)))

	results := make([]submission, len(drafts))
	var g errgroup.Group
	for i, d := range drafts {
		g.Go(func() error {
			results[i] = s.submit(ctx, customerID, addr, d)
			return nil
		})
	}
	_ = g.Wait()

	lg := zctx.From(ctx)
	var (
		orders    = make([]*order.Order, 0, len(results))
		succeeded []string
		firstErr  error
		failed    int
	)
	for _, r := range results {
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		orders = append(orders, r.order)
		succeeded = append(succeeded, r.draft.Key)
	}
	if failed > 0 {
		lg.Warn("Checkout failed",
			zap.String("customer_id", customerID),
			zap.Int("failed", failed),
			zap.Strings("succeeded", succeeded),
			zap.Error(firstErr),
		)
		return nil, &SubmissionError{
			Message:   messageOf(firstErr),
			Failed:    failed,
			Total:     len(results),
			Succeeded: succeeded,
			Err:       firstErr,
		}
	}

	summary := s.pricing.Summarize(snap.TotalPrice())
	if err := c.ClearCart(ctx); err != nil {
		// Orders exist at this point; the in-memory cart is already empty.
		lg.Error("Clear cart after checkout", zap.String("customer_id", customerID), zap.Error(err))
	}
	lg.Info("Checkout placed",
		zap.String("customer_id", customerID),
		zap.Int("orders", len(orders)),
		zap.String("total", summary.Total.StringFixed(2)),
	)
	return &Result{Orders: orders, Summary: summary}, nil
}

func (s *Service) submit(ctx context.Context, customerID string, addr Address, d Draft) submission {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(
			attribute.String("provider.group", d.Key),
			attribute.Int("order.items", len(d.Items)),
		),
	)
	defer span.End()

	req := BuildRequest(addr, d)
	o, err := s.orders.CreateOrder(ctx, req, IdempotencyKey(customerID, d.Key, req))
	outcome := "success"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return submission{draft: d, order: o, err: err}
}

// messageOf returns the user-facing message of a submission error.
func messageOf(err error) string {
	var pub interface{ PublicMessage() string }
	if errors.As(err, &pub) {
		if m := pub.PublicMessage(); m != "" {
			return m
		}
		return FallbackMessage
	}
	if m := err.Error(); m != "" {
		return m
	}
	return FallbackMessage
}
