// Package checkout turns the cart into a payment-provider order and reacts to
// the outcome of the payment.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
)

type State string

const (
	StateIdle          State = "idle"
	StateReady         State = "ready"
	StateOrderCreating State = "order-creating"
	StateCapturing     State = "capturing"
	StateSuccess       State = "success"
	StateCancelled     State = "cancelled"
	StateErrored       State = "errored"
)

type Availability string

const (
	Unavailable   Availability = "unavailable"
	Ready         Availability = "ready"
	OrderInFlight Availability = "order-in-flight"
)

// Outcomes reported to the Recorder.
const (
	OutcomeCreated     = "created"
	OutcomeApproved    = "approved"
	OutcomeCancelled   = "cancelled"
	OutcomeErrored     = "errored"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
)

const (
	DefaultStateKey    = "sidehustle_checkout"
	DefaultSuccessPage = "checkout-success.html"
	DefaultCurrency    = "USD"
	DefaultNoticeTTL   = 5 * time.Second
	ErrorMessage       = "An error occurred during checkout. Please try again."
	defaultPayerName   = "Customer"

	pendingTimeout = 2 * time.Minute
)

type Payer struct {
	GivenName string `json:"givenName,omitempty"`
	Surname   string `json:"surname,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Capture is the provider's answer to a capture request.
type Capture struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Payer   Payer  `json:"payer"`
}

// Gateway is the payment provider.
type Gateway interface {
	Available(ctx context.Context) bool
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
}

type cartStore interface {
	Summary(ctx context.Context) cart.Summary
	ClearCart(ctx context.Context)
}

// Recorder receives checkout outcomes, e.g. for metrics.
type Recorder interface {
	CheckoutOutcome(outcome string)
}

type Config struct {
	Currency    string
	SuccessPage string
	BrandName   string
	StateKey    string
	NoticeTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.SuccessPage == "" {
		c.SuccessPage = DefaultSuccessPage
	}
	if c.StateKey == "" {
		c.StateKey = DefaultStateKey
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = DefaultNoticeTTL
	}
	return c
}

type Notice struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Status struct {
	State        State        `json:"state"`
	Availability Availability `json:"availability"`
	OrderID      string       `json:"orderId,omitempty"`
	Notice       *Notice      `json:"notice,omitempty"`
}

// Result is the terminal outcome of an approved payment.
type Result struct {
	OrderID     string `json:"orderId"`
	PayerName   string `json:"payerName"`
	RedirectURL string `json:"redirectUrl"`
}

// record is what the adapter persists between requests of one session.
type record struct {
	State   State   `json:"state,omitempty"`
	OrderID string  `json:"orderId,omitempty"`
	Notice  *Notice `json:"notice,omitempty"`

	// Attempt identifies the provider call in flight, if any.
	Attempt   string    `json:"attempt,omitempty"`
	StartedAt time.Time `json:"startedAt,omitzero"`
}

type Adapter struct {
	cart     cartStore
	gateway  Gateway
	storage  storage.Storage
	cfg      Config
	scope    string
	log      *logger.Logger
	recorder Recorder
	now      func() time.Time
}

type Option func(*Adapter)

func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Adapter) { a.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

func WithScope(scope string) Option {
	return func(a *Adapter) { a.scope = scope }
}

// New builds an Adapter. A nil gateway means the provider is not loaded.
func New(c cartStore, gw Gateway, st storage.Storage, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cart:    c,
		gateway: gw,
		storage: st,
		cfg:     cfg.withDefaults(),
		log:     logger.Discard(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) available(ctx context.Context) bool {
	return a.gateway != nil && a.gateway.Available(ctx)
}

// Status reports where the session stands in the checkout flow.
func (a *Adapter) Status(ctx context.Context) Status {
	return a.status(ctx, a.load(ctx))
}

func (a *Adapter) status(ctx context.Context, rec record) Status {
	st := Status{Availability: Unavailable, State: StateIdle}
	if !a.available(ctx) {
		return st
	}
	st.Availability = Ready
	if rec.OrderID != "" {
		st.Availability = OrderInFlight
		st.OrderID = rec.OrderID
	}
	if n := rec.Notice; n != nil && a.now().Before(n.ExpiresAt) {
		st.Notice = n
	}

	switch {
	case rec.State == StateOrderCreating || rec.State == StateCapturing:
		st.State = rec.State
	case len(a.cart.Summary(ctx).Items) == 0:
		st.State = StateIdle
	case st.Notice != nil:
		st.State = StateErrored
	default:
		st.State = StateReady
	}
	return st
}

// BuildOrder maps the current cart to an order request.
func (a *Adapter) BuildOrder(ctx context.Context) (OrderRequest, error) {
	sum := a.cart.Summary(ctx)
	if len(sum.Items) == 0 {
		return OrderRequest{}, domain.ErrEmptyCart
	}
	return NewOrderRequest(sum.Items, sum.Total, a.cfg.Currency, a.cfg.BrandName), nil
}

// CreateOrder asks the provider for an order built from the cart at call time.
// The session lock is not held while the provider is called.
func (a *Adapter) CreateOrder(ctx context.Context) (string, error) {
	mu := a.lock()
	mu.Lock()
	if !a.available(ctx) {
		mu.Unlock()
		a.record(OutcomeUnavailable)
		return "", domain.ErrCheckoutUnavailable
	}
	req, err := a.BuildOrder(ctx)
	if err != nil {
		mu.Unlock()
		a.record(OutcomeEmpty)
		return "", err
	}
	if a.pending(a.load(ctx)) {
		mu.Unlock()
		return "", fmt.Errorf("payment already in progress: %w", domain.ErrOrderMismatch)
	}
	attempt := a.begin(ctx, StateOrderCreating, "")
	mu.Unlock()

	orderID, err := a.gateway.CreateOrder(ctx, req)

	mu.Lock()
	defer mu.Unlock()
	current := a.load(ctx).Attempt == attempt
	if err != nil {
		if current {
			a.fail(ctx, err)
		}
		return "", fmt.Errorf("create order: %w", err)
	}
	if !current {
		a.log.Warn(a.log.WithField(ctx, "order_id", orderID), "checkout: order created after the session moved on")
		return "", fmt.Errorf("order %s superseded: %w", orderID, domain.ErrOrderMismatch)
	}

	a.save(ctx, record{State: StateOrderCreating, OrderID: orderID})
	a.record(OutcomeCreated)
	a.log.Info(a.log.WithFields(ctx, map[string]any{"order_id": orderID, "total": req.PurchaseUnits[0].Amount.Value}), "checkout: order created")
	return orderID, nil
}

// Approve captures orderID. On success the cart is cleared and the result
// carries the success page URL.
func (a *Adapter) Approve(ctx context.Context, orderID string) (Result, error) {
	mu := a.lock()
	mu.Lock()
	rec := a.load(ctx)
	if orderID == "" || rec.OrderID != orderID || a.pending(rec) {
		mu.Unlock()
		return Result{}, domain.ErrOrderMismatch
	}
	if !a.available(ctx) {
		mu.Unlock()
		a.record(OutcomeUnavailable)
		return Result{}, domain.ErrCheckoutUnavailable
	}
	attempt := a.begin(ctx, StateCapturing, orderID)
	mu.Unlock()

	capture, err := a.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		mu.Lock()
		if a.load(ctx).Attempt == attempt {
			a.fail(ctx, err)
		}
		mu.Unlock()
		return Result{}, fmt.Errorf("capture order: %w", err)
	}

	// The payment is taken even if the session was cancelled meanwhile.
	a.cart.ClearCart(ctx)
	mu.Lock()
	if a.load(ctx).Attempt == attempt {
		a.clear(ctx)
	}
	mu.Unlock()
	a.record(OutcomeApproved)

	if capture.OrderID == "" {
		capture.OrderID = orderID
	}
	name := strings.TrimSpace(capture.Payer.GivenName)
	if name == "" {
		name = defaultPayerName
	}
	res := Result{
		OrderID:     capture.OrderID,
		PayerName:   name,
		RedirectURL: a.successURL(capture.OrderID, name),
	}
	a.log.Info(a.log.WithFields(ctx, map[string]any{"order_id": res.OrderID, "capture_status": capture.Status}), "checkout: payment captured")
	return res, nil
}

// Cancel abandons orderID. The cart is left untouched.
func (a *Adapter) Cancel(ctx context.Context, orderID string) error {
	mu := a.lock()
	mu.Lock()
	defer mu.Unlock()

	rec := a.load(ctx)
	if rec.OrderID != "" && rec.OrderID != orderID {
		return domain.ErrOrderMismatch
	}
	a.clear(ctx)
	a.record(OutcomeCancelled)
	a.log.Info(a.log.WithField(ctx, "order_id", orderID), "checkout: payment cancelled")
	return nil
}

// Fail records a provider error. The session shows a transient notice and the
// cart is left untouched.
func (a *Adapter) Fail(ctx context.Context, cause error) Status {
	mu := a.lock()
	mu.Lock()
	rec := a.fail(ctx, cause)
	mu.Unlock()
	return a.status(ctx, rec)
}

// begin marks a provider call in flight and returns its attempt token.
// Callers hold the session lock.
func (a *Adapter) begin(ctx context.Context, state State, orderID string) string {
	attempt := uuid.NewString()
	a.save(ctx, record{State: state, OrderID: orderID, Attempt: attempt, StartedAt: a.now()})
	return attempt
}

// pending reports a provider call started by another request that has not
// finished. Calls older than pendingTimeout are treated as abandoned.
func (a *Adapter) pending(rec record) bool {
	if rec.Attempt == "" {
		return false
	}
	if rec.State != StateCapturing && (rec.State != StateOrderCreating || rec.OrderID != "") {
		return false
	}
	return a.now().Sub(rec.StartedAt) < pendingTimeout
}

func (a *Adapter) fail(ctx context.Context, cause error) record {
	if cause == nil {
		cause = errors.New("unspecified payment error")
	}
	rec := record{
		State: StateErrored,
		Notice: &Notice{
			Message:   ErrorMessage,
			ExpiresAt: a.now().Add(a.cfg.NoticeTTL),
		},
	}
	a.save(ctx, rec)
	a.record(OutcomeErrored)
	a.log.Error(ctx, "checkout: payment error", cause)
	return rec
}

func (a *Adapter) successURL(orderID, payerName string) string {
	name := strings.ReplaceAll(url.QueryEscape(payerName), "+", "%20")
	return a.cfg.SuccessPage + "?order=" + url.QueryEscape(orderID) + "&name=" + name
}

func (a *Adapter) record(outcome string) {
	if a.recorder != nil {
		a.recorder.CheckoutOutcome(outcome)
	}
}

func (a *Adapter) load(ctx context.Context) record {
	var rec record
	raw, err := a.storage.GetItem(ctx, a.cfg.StateKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			a.log.Error(ctx, "checkout: read state", err)
		}
		return rec
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		a.log.Error(ctx, "checkout: decode state", err)
		return record{}
	}
	return rec
}

func (a *Adapter) save(ctx context.Context, rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		a.log.Error(ctx, "checkout: encode state", err)
		return
	}
	if err := a.storage.SetItem(ctx, a.cfg.StateKey, string(data)); err != nil {
		a.log.Error(ctx, "checkout: write state", err)
	}
}

func (a *Adapter) clear(ctx context.Context) {
	if err := a.storage.RemoveItem(ctx, a.cfg.StateKey); err != nil {
		a.log.Error(ctx, "checkout: clear state", err)
	}
}

// The stripes guard the persisted checkout record only. Provider calls run
// outside them.
const lockStripes = 32

var stripes [lockStripes]sync.Mutex

func (a *Adapter) lock() *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(a.scope))
	return &stripes[h.Sum32()%lockStripes]
}
