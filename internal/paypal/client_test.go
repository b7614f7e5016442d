package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/domain"
)

type fakePayPal struct {
	tokenCalls   atomic.Int32
	orderCalls   atomic.Int32
	captureCalls atomic.Int32
	failOrders   atomic.Bool
	rejectOrders atomic.Bool
	lastOrder    atomic.Value
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		f.orderCalls.Add(1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))
		if f.failOrders.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if f.rejectOrders.Load() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"amount mismatch","debug_id":"dbg-1"}`))
			return
		}
		var req checkout.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.lastOrder.Store(req)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED"}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captureCalls.Add(1)
		assert.Equal(t, "capture-"+r.PathValue("id"), r.Header.Get("PayPal-Request-Id"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"` + r.PathValue("id") + `","status":"COMPLETED","payer":{"name":{"given_name":"Ada","surname":"Lovelace"},"email_address":"ada@example.com"}}`))
	})
	return mux
}

func testConfig() config.PayPalConfig {
	return config.PayPalConfig{
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		Env:              "sandbox",
		Timeout:          2 * time.Second,
		BreakerFailures:  2,
		BreakerOpenFor:   time.Minute,
		BreakerHalfOpenN: 1,
	}
}

func newTestClient(t *testing.T, cfg config.PayPalConfig) (*Client, *fakePayPal) {
	t.Helper()
	fake := &fakePayPal{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(cfg, nil, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fake
}

func sampleOrder() checkout.OrderRequest {
	return checkout.OrderRequest{
		Intent: checkout.IntentCapture,
		PurchaseUnits: []checkout.PurchaseUnit{{
			Amount: checkout.Amount{CurrencyCode: "USD", Value: "45.00"},
		}},
	}
}

func TestNormalizeEnv(t *testing.T) {
	cases := map[string]string{
		"":           sandboxEnv,
		"sandbox":    sandboxEnv,
		" Sandbox ":  sandboxEnv,
		"live":       liveEnv,
		"production": liveEnv,
	}
	for in, want := range cases {
		got, err := normalizeEnv(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := normalizeEnv("staging")
	assert.ErrorIs(t, err, errInvalidEnv)
}

func TestNewPicksBaseURLFromEnv(t *testing.T) {
	cfg := testConfig()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, sandboxBaseURL, c.baseURL)

	cfg.Env = "live"
	c, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, liveBaseURL, c.baseURL)
	assert.Equal(t, liveEnv, c.Environment())
}

func TestCreateAndCaptureOrder(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	ctx := context.Background()

	require.True(t, c.Available(ctx))

	id, err := c.CreateOrder(ctx, sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", id)

	sent, ok := fake.lastOrder.Load().(checkout.OrderRequest)
	require.True(t, ok)
	assert.Equal(t, "45.00", sent.PurchaseUnits[0].Amount.Value)

	capture, err := c.CaptureOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, capture.OrderID)
	assert.Equal(t, "COMPLETED", capture.Status)
	assert.Equal(t, "Ada", capture.Payer.GivenName)
	assert.Equal(t, "ada@example.com", capture.Payer.Email)

	// token is reused across calls
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestUnconfiguredClientIsUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.ClientSecret = ""
	c, fake := newTestClient(t, cfg)
	ctx := context.Background()

	assert.False(t, c.Available(ctx))
	_, err := c.CreateOrder(ctx, sampleOrder())
	assert.ErrorIs(t, err, domain.ErrCheckoutUnavailable)
	assert.Zero(t, fake.orderCalls.Load())
}

func TestAPIErrorIsReturned(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	fake.rejectOrders.Store(true)

	_, err := c.CreateOrder(context.Background(), sampleOrder())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "UNPROCESSABLE_ENTITY", apiErr.Name)
	assert.True(t, strings.Contains(apiErr.Error(), "dbg-1"))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	fake.rejectOrders.Store(true)
	ctx := context.Background()

	for range 5 {
		_, err := c.CreateOrder(ctx, sampleOrder())
		require.Error(t, err)
	}
	assert.True(t, c.Available(ctx))
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	fake.failOrders.Store(true)
	ctx := context.Background()

	for range 2 {
		_, err := c.CreateOrder(ctx, sampleOrder())
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCheckoutUnavailable)
	}
	assert.False(t, c.Available(ctx))

	_, err := c.CreateOrder(ctx, sampleOrder())
	assert.ErrorIs(t, err, domain.ErrCheckoutUnavailable)
	assert.Equal(t, int32(2), fake.orderCalls.Load())
}
