// Package paypal implements the checkout gateway over the PayPal Orders v2 REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	maxErrorBody = 64 << 10
)

var errInvalidEnv = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("paypal: http %d", e.StatusCode)
	}
	return fmt.Sprintf("paypal: http %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

// Client implements checkout.Gateway.
type Client struct {
	baseURL    string
	env        string
	configured bool
	http       *http.Client
	base       *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for token and API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

// New builds a client. Missing credentials are not an error: the client
// reports itself unavailable instead.
func New(cfg config.PayPalConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	env, err := normalizeEnv(cfg.Env)
	if err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Discard()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    liveBaseURL,
		env:        env,
		configured: cfg.Configured(),
		base:       &http.Client{Timeout: timeout},
		log:        logg,
	}
	if env == sandboxEnv {
		c.baseURL = sandboxBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}

	cc := clientcredentials.Config{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		TokenURL:     c.baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	c.http = cc.Client(tokenCtx)
	c.http.Timeout = c.base.Timeout

	c.breaker = gobreaker.NewCircuitBreaker(breakerSettings(cfg, logg))
	return c, nil
}

func breakerSettings(cfg config.PayPalConfig, logg *logger.Logger) gobreaker.Settings {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	halfOpen := cfg.BreakerHalfOpenN
	if halfOpen == 0 {
		halfOpen = 1
	}
	return gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: halfOpen,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Request errors (4xx) are the caller's fault, not an outage.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Warn(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "paypal: circuit breaker state changed")
		},
	}
}

func normalizeEnv(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", sandboxEnv, "test":
		return sandboxEnv, nil
	case liveEnv, "production", "prod":
		return liveEnv, nil
	default:
		return "", errInvalidEnv
	}
}

// Environment reports the normalized PayPal environment in use.
func (c *Client) Environment() string {
	return c.env
}

// Available is false without credentials or while the breaker is open.
func (c *Client) Available(context.Context) bool {
	return c.configured && c.breaker.State() != gobreaker.StateOpen
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		Name struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	var out orderResponse
	headers := map[string]string{"PayPal-Request-Id": uuid.NewString()}
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", req, &out, headers); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("paypal: order response without id")
	}
	return out.ID, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (checkout.Capture, error) {
	var out captureResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	headers := map[string]string{
		"PayPal-Request-Id": "capture-" + orderID,
		"Prefer":            "return=representation",
	}
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &out, headers); err != nil {
		return checkout.Capture{}, err
	}
	id := out.ID
	if id == "" {
		id = orderID
	}
	return checkout.Capture{
		OrderID: id,
		Status:  out.Status,
		Payer: checkout.Payer{
			GivenName: out.Payer.Name.GivenName,
			Surname:   out.Payer.Name.Surname,
			Email:     out.Payer.EmailAddress,
		},
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	if !c.configured {
		return domain.ErrCheckoutUnavailable
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, out, headers)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrCheckoutUnavailable, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("paypal: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal: decode response: %w", err)
	}
	return nil
}
