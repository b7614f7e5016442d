package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/storage"
)

type stubGateway struct {
	available  bool
	orderID    string
	createErr  error
	capture    Capture
	captureErr error
	lastReq    OrderRequest
	captured   []string
}

func (g *stubGateway) Available(context.Context) bool { return g.available }

func (g *stubGateway) CreateOrder(_ context.Context, req OrderRequest) (string, error) {
	g.lastReq = req
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.orderID, nil
}

func (g *stubGateway) CaptureOrder(_ context.Context, orderID string) (Capture, error) {
	g.captured = append(g.captured, orderID)
	if g.captureErr != nil {
		return Capture{}, g.captureErr
	}
	c := g.capture
	c.OrderID = orderID
	return c, nil
}

type stubRecorder struct {
	outcomes []string
}

func (r *stubRecorder) CheckoutOutcome(o string) { r.outcomes = append(r.outcomes, o) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	cart     *cart.Store
	gw       *stubGateway
	adapter  *Adapter
	recorder *stubRecorder
	clock    *clock
	mem      *storage.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()
	f := &fixture{
		cart:     cart.Open(ctx, mem, nil),
		gw:       &stubGateway{available: true, orderID: "5O190127TN364715T", capture: Capture{Status: "COMPLETED", Payer: Payer{GivenName: "Ana"}}},
		recorder: &stubRecorder{},
		clock:    &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		mem:      mem,
	}
	f.adapter = New(f.cart, f.gw, mem, Config{BrandName: "Side Hustle Studio"}, WithRecorder(f.recorder), WithClock(f.clock.now))
	return f
}

// fillScenarioCart leaves item A x3 at 5000 after adding and removing item B.
func (f *fixture) fillScenarioCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	a := domain.AddSpec{ProductID: "gal-001", Title: "Sunset Over Mountains", OptionID: "print", OptionLabel: "Fine Art Print", SubOption: "square", SubOptionLabel: "Square", SizeNote: "12×12 in", Price: 5000}
	f.cart.AddItem(ctx, a)
	a.Quantity = 2
	f.cart.AddItem(ctx, a)
	b := f.cart.AddItem(ctx, domain.AddSpec{ProductID: "gal-002", Title: "Abstract Flow", OptionID: "print", OptionLabel: "Fine Art Print", Price: 2000})
	f.cart.RemoveItem(ctx, b.ID)
}

func TestBuildOrderScenario(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)

	req, err := f.adapter.BuildOrder(context.Background())
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	want := OrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			Amount: Amount{
				CurrencyCode: "USD",
				Value:        "150.00",
				Breakdown:    &Breakdown{ItemTotal: Money{CurrencyCode: "USD", Value: "150.00"}},
			},
			Items: []Item{{
				Name:        "Sunset Over Mountains",
				Description: "Fine Art Print - Square (12×12 in)",
				UnitAmount:  Money{CurrencyCode: "USD", Value: "50.00"},
				Quantity:    "3",
			}},
		}},
		ApplicationContext: &ApplicationContext{BrandName: "Side Hustle Studio"},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("order payload mismatch (-want +got):\n%s", diff)
	}

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"quantity":"3"`) || !strings.Contains(string(body), `"item_total":{"currency_code":"USD","value":"150.00"}`) {
		t.Fatalf("unexpected wire shape %s", body)
	}
}

func TestBuildOrderRecomputesAtCallTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.cart.AddItem(ctx, domain.AddSpec{ProductID: "gal-003", Title: "City Lights", OptionID: "print", Price: 4500})
	f.cart.UpdateQuantity(ctx, item.ID, 4)

	req, err := f.adapter.BuildOrder(ctx)
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	if got := req.PurchaseUnits[0].Amount.Value; got != "180.00" {
		t.Fatalf("expected 180.00, got %s", got)
	}
}

func TestBuildOrderTruncatesLongText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cart.AddItem(ctx, domain.AddSpec{ProductID: "p", Title: strings.Repeat("é", 200), OptionID: "o", OptionLabel: strings.Repeat("x", 300), Price: 100})

	req, err := f.adapter.BuildOrder(ctx)
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	it := req.PurchaseUnits[0].Items[0]
	if n := len([]rune(it.Name)); n != 127 {
		t.Fatalf("expected name truncated to 127 runes, got %d", n)
	}
	if n := len([]rune(it.Description)); n != 127 {
		t.Fatalf("expected description truncated to 127 runes, got %d", n)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	if _, err := f.adapter.CreateOrder(context.Background()); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if diff := cmp.Diff([]string{OutcomeEmpty}, f.recorder.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if got := f.adapter.Status(ctx); got.State != StateIdle || got.Availability != Ready {
		t.Fatalf("empty cart should be idle, got %+v", got)
	}
	f.fillScenarioCart(t)
	if got := f.adapter.Status(ctx); got.State != StateReady || got.Availability != Ready {
		t.Fatalf("expected ready, got %+v", got)
	}

	orderID, err := f.adapter.CreateOrder(ctx)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	got := f.adapter.Status(ctx)
	if got.State != StateOrderCreating || got.Availability != OrderInFlight || got.OrderID != orderID {
		t.Fatalf("expected order in flight, got %+v", got)
	}

	res, err := f.adapter.Approve(ctx, orderID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.RedirectURL != "checkout-success.html?order=5O190127TN364715T&name=Ana" {
		t.Fatalf("unexpected redirect %q", res.RedirectURL)
	}
	if n := len(f.cart.GetCart(ctx)); n != 0 {
		t.Fatalf("expected cart cleared after success, got %d lines", n)
	}
	if got := f.adapter.Status(ctx); got.State != StateIdle || got.Availability != Ready {
		t.Fatalf("expected idle after success, got %+v", got)
	}
	if diff := cmp.Diff([]string{OutcomeCreated, OutcomeApproved}, f.recorder.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestUnavailableGateway(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	f.gw.available = false
	ctx := context.Background()

	if got := f.adapter.Status(ctx); got.State != StateIdle || got.Availability != Unavailable {
		t.Fatalf("expected idle/unavailable, got %+v", got)
	}
	if _, err := f.adapter.CreateOrder(ctx); !errors.Is(err, domain.ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}

	noGateway := New(f.cart, nil, f.mem, Config{})
	if got := noGateway.Status(ctx); got.Availability != Unavailable {
		t.Fatalf("expected unavailable without gateway, got %+v", got)
	}
}

func TestCancelKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()

	orderID, err := f.adapter.CreateOrder(ctx)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := f.adapter.Cancel(ctx, "someone-else"); !errors.Is(err, domain.ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch, got %v", err)
	}
	if err := f.adapter.Cancel(ctx, orderID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := f.cart.CartTotal(ctx); got != 15000 {
		t.Fatalf("expected cart preserved, total %d", got)
	}
	if got := f.adapter.Status(ctx); got.State != StateReady || got.Availability != Ready {
		t.Fatalf("expected ready after cancel, got %+v", got)
	}
	if _, err := f.adapter.Approve(ctx, orderID); !errors.Is(err, domain.ErrOrderMismatch) {
		t.Fatalf("expected cancelled order to be rejected, got %v", err)
	}
}

func TestFailShowsNoticeUntilExpiry(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()

	st := f.adapter.Fail(ctx, errors.New("popup closed by window manager"))
	if st.State != StateErrored || st.Notice == nil || st.Notice.Message != ErrorMessage {
		t.Fatalf("expected errored status with notice, got %+v", st)
	}
	if got := f.cart.CartTotal(ctx); got != 15000 {
		t.Fatalf("expected cart untouched, got %d", got)
	}

	f.clock.t = f.clock.t.Add(4 * time.Second)
	if got := f.adapter.Status(ctx); got.Notice == nil {
		t.Fatal("notice should still be visible before 5s")
	}
	f.clock.t = f.clock.t.Add(time.Second)
	if got := f.adapter.Status(ctx); got.Notice != nil || got.State != StateReady {
		t.Fatalf("expected notice dismissed and ready, got %+v", got)
	}
}

func TestGatewayFailuresBecomeErrored(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()

	f.gw.createErr = errors.New("503 from provider")
	if _, err := f.adapter.CreateOrder(ctx); err == nil {
		t.Fatal("expected create error")
	}
	if got := f.adapter.Status(ctx); got.State != StateErrored || got.Availability != Ready {
		t.Fatalf("expected errored, got %+v", got)
	}

	f.gw.createErr = nil
	orderID, err := f.adapter.CreateOrder(ctx)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	f.gw.captureErr = errors.New("INSTRUMENT_DECLINED")
	if _, err := f.adapter.Approve(ctx, orderID); err == nil {
		t.Fatal("expected capture error")
	}
	if got := f.cart.CartTotal(ctx); got != 15000 {
		t.Fatalf("expected cart preserved after failed capture, got %d", got)
	}
	want := []string{OutcomeErrored, OutcomeCreated, OutcomeErrored}
	if diff := cmp.Diff(want, f.recorder.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRedirectEscapesPayerName(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()
	f.gw.capture.Payer.GivenName = "Zoë & Co"

	orderID, err := f.adapter.CreateOrder(ctx)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	res, err := f.adapter.Approve(ctx, orderID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if want := "checkout-success.html?order=5O190127TN364715T&name=Zo%C3%AB%20%26%20Co"; res.RedirectURL != want {
		t.Fatalf("expected %q, got %q", want, res.RedirectURL)
	}
}

func TestMissingPayerNameFallsBack(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()
	f.gw.capture.Payer = Payer{}

	orderID, _ := f.adapter.CreateOrder(ctx)
	res, err := f.adapter.Approve(ctx, orderID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.PayerName != "Customer" || !strings.HasSuffix(res.RedirectURL, "&name=Customer") {
		t.Fatalf("expected Customer fallback, got %+v", res)
	}
}

type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) Available(context.Context) bool { return true }

func (g *blockingGateway) CreateOrder(ctx context.Context, _ OrderRequest) (string, error) {
	close(g.entered)
	select {
	case <-g.release:
		return "SLOW-ORDER", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *blockingGateway) CaptureOrder(context.Context, string) (Capture, error) {
	return Capture{Status: "COMPLETED"}, nil
}

// sameStripe finds another scope guarded by the same lock stripe as scope.
func sameStripe(t *testing.T, scope string) string {
	t.Helper()
	stripe := func(s string) uint32 {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		return h.Sum32() % lockStripes
	}
	for i := 0; i < 10000; i++ {
		other := fmt.Sprintf("session-b-%d", i)
		if other != scope && stripe(other) == stripe(scope) {
			return other
		}
	}
	t.Fatal("no scope shares a stripe")
	return ""
}

func TestSlowProviderDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	slow := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}

	scopeA := "session-a"
	scopeB := sameStripe(t, scopeA)
	stA := storage.ForSession(mem, scopeA)
	stB := storage.ForSession(mem, scopeB)

	cartA := cart.Open(ctx, stA, nil, cart.WithScope(scopeA))
	cartA.AddItem(ctx, domain.AddSpec{ProductID: "gal-001", OptionID: "print", Price: 5000})
	a := New(cartA, slow, stA, Config{}, WithScope(scopeA))
	b := New(cart.Open(ctx, stB, nil, cart.WithScope(scopeB)), &stubGateway{available: true}, stB, Config{}, WithScope(scopeB))

	created := make(chan error, 1)
	go func() {
		_, err := a.CreateOrder(ctx)
		created <- err
	}()
	<-slow.entered

	done := make(chan error, 1)
	go func() { done <- b.Cancel(ctx, "") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("another session's Cancel waited on an in-flight provider call")
	}

	if got := a.Status(ctx); got.State != StateOrderCreating || got.OrderID != "" {
		t.Fatalf("expected creation in flight, got %+v", got)
	}
	if _, err := a.CreateOrder(ctx); !errors.Is(err, domain.ErrOrderMismatch) {
		t.Fatalf("expected a second create to be refused while one is in flight, got %v", err)
	}

	close(slow.release)
	if err := <-created; err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if got := a.Status(ctx); got.OrderID != "SLOW-ORDER" || got.Availability != OrderInFlight {
		t.Fatalf("expected order recorded after the call returned, got %+v", got)
	}
}

func TestCancelDuringCreateSupersedesOrder(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	slow := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	c := cart.Open(ctx, mem, nil)
	c.AddItem(ctx, domain.AddSpec{ProductID: "gal-001", OptionID: "print", Price: 5000})
	a := New(c, slow, mem, Config{})

	created := make(chan error, 1)
	go func() {
		_, err := a.CreateOrder(ctx)
		created <- err
	}()
	<-slow.entered
	if err := a.Cancel(ctx, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(slow.release)

	if err := <-created; !errors.Is(err, domain.ErrOrderMismatch) {
		t.Fatalf("expected superseded order, got %v", err)
	}
	if got := a.Status(ctx); got.OrderID != "" || got.State != StateReady {
		t.Fatalf("expected cancelled session to stay ready, got %+v", got)
	}
}

func TestAbandonedCreateIsRetried(t *testing.T) {
	f := newFixture(t)
	f.fillScenarioCart(t)
	ctx := context.Background()

	stale, _ := json.Marshal(record{State: StateOrderCreating, Attempt: "lost", StartedAt: f.clock.t})
	if err := f.mem.SetItem(ctx, DefaultStateKey, string(stale)); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if _, err := f.adapter.CreateOrder(ctx); !errors.Is(err, domain.ErrOrderMismatch) {
		t.Fatalf("expected fresh in-flight create to block a retry, got %v", err)
	}
	f.clock.t = f.clock.t.Add(pendingTimeout)
	if _, err := f.adapter.CreateOrder(ctx); err != nil {
		t.Fatalf("expected abandoned create to be retried, got %v", err)
	}
}
