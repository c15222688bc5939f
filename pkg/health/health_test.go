package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint_Passing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", passing)
	h.AddLivenessCheck("other", passing)

	code, body := serve(t, h.LiveEndpoint)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLiveEndpoint_FailingPastThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("cart-store", failing("connection refused"))
	runN(h.liveness[0], 3)

	code, body := serve(t, h.LiveEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["cart-store"])
}

func TestLiveEndpoint_BelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", failing("temporary"))
	runN(h.liveness[0], 2)

	code, _ := serve(t, h.LiveEndpoint)

	assert.Equal(t, http.StatusOK, code)
}

func TestCustomThresholds(t *testing.T) {
	h := New()
	fail := true
	h.AddReadinessCheck("order-api", func(context.Context) error {
		if fail {
			return errors.New("breaker open")
		}
		return nil
	}, WithThresholds(1, 2), WithTimeout(time.Millisecond))
	h.SetReady(true)
	c := h.readiness[0]

	runN(c, 1)
	assert.False(t, h.IsReady())

	fail = false
	runN(c, 1)
	assert.False(t, h.IsReady(), "one success is below the success threshold")
	runN(c, 1)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("cart-store", passing)

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneOfManyFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("cart-store", passing)
	h.AddReadinessCheck("order-api", failing("circuit breaker is open"))
	h.SetReady(true)
	runN(h.readiness[1], 3)

	code, body := serve(t, h.ReadyEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Len(t, body.Checks, 1)
	assert.Equal(t, "circuit breaker is open", body.Checks["order-api"])
}

func TestStart_RunsChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("cart-store", failing("down"), WithThresholds(1, 1))
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	t.Cleanup(h.Stop)

	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", failing("err"))
	h.AddReadinessCheck("ready", passing)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck("redis", pinger{})(context.Background()))

	err := PingCheck("redis", pinger{err: errors.New("refused")})(context.Background())
	assert.EqualError(t, err, "ping redis: refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
