package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sidehustle-shop/internal/events"
)

// ShopMetrics counts cart events, checkout outcomes and HTTP requests.
type ShopMetrics struct {
	cartEvents       *prometheus.CounterVec
	checkoutOutcomes *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	gatherer         prometheus.Gatherer
}

// New registers the shop metrics on reg. A nil reg yields a no-op recorder.
func New(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	cartEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_cart_events_total",
		Help: "Cart events published, by kind.",
	}, []string{"kind"})
	checkoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_checkout_outcomes_total",
		Help: "Checkout attempts, by outcome.",
	}, []string{"outcome"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shop_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
	reg.MustRegister(cartEvents, checkoutOutcomes, requestDuration)

	m := &ShopMetrics{
		cartEvents:       cartEvents,
		checkoutOutcomes: checkoutOutcomes,
		requestDuration:  requestDuration,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Observe subscribes to every cart event on bus. The returned func unsubscribes.
func (m *ShopMetrics) Observe(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		m.CartEvent(e.Kind)
	})
}

func (m *ShopMetrics) CartEvent(kind events.Kind) {
	if m == nil || m.cartEvents == nil {
		return
	}
	m.cartEvents.WithLabelValues(normalizeLabel(string(kind))).Inc()
}

// CheckoutOutcome satisfies checkout.Recorder.
func (m *ShopMetrics) CheckoutOutcome(outcome string) {
	if m == nil || m.checkoutOutcomes == nil {
		return
	}
	m.checkoutOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ShopMetrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(route), strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry the metrics were registered on.
func (m *ShopMetrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
