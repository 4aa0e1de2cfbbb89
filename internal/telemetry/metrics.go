// Package telemetry exposes Prometheus business metrics for the pricing
// and order-lifecycle engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds business-level counters and histograms. All methods are
// nil-safe so components can run without metrics in tests.
type Metrics struct {
	// Carts
	CartsCreated prometheus.Counter
	CartUpserts  prometheus.Counter
	CartMerges   *prometheus.CounterVec

	// Orders
	OrdersCreated      prometheus.Counter
	OrderValue         prometheus.Histogram
	OrderItemCount     prometheus.Histogram
	OrderStatusChanges *prometheus.CounterVec

	// Side channels
	CacheInvalidations *prometheus.CounterVec
	NotifyFailures     *prometheus.CounterVec
}

// NewMetrics registers the engine's metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CartsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_created_total",
			Help:      "Total number of carts created.",
		}),
		CartUpserts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_upserts_total",
			Help:      "Total number of cart line upserts (product or special).",
		}),
		CartMerges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merges_total",
			Help:      "Guest-to-user cart merges by outcome.",
		}, []string{"outcome"}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of orders created from carts.",
		}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_cents",
			Help:      "Order total at creation, in cents.",
			Buckets:   prometheus.ExponentialBuckets(500, 2.5, 10),
		}),
		OrderItemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_item_count",
			Help:      "Number of line items per created order.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		OrderStatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by from/to state.",
		}, []string{"from", "to"}),
		CacheInvalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Named cache-key invalidations emitted after mutations.",
		}, []string{"key"}),
		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Fire-and-forget notification dispatch failures by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordCartCreated() {
	if m == nil {
		return
	}
	m.CartsCreated.Inc()
}

func (m *Metrics) RecordCartUpsert() {
	if m == nil {
		return
	}
	m.CartUpserts.Inc()
}

func (m *Metrics) RecordCartMerge(outcome string) {
	if m == nil {
		return
	}
	m.CartMerges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOrderCreated(totalCents int64, itemCount int) {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
	m.OrderValue.Observe(float64(totalCents))
	m.OrderItemCount.Observe(float64(itemCount))
}

func (m *Metrics) RecordOrderStatusChange(from, to string) {
	if m == nil {
		return
	}
	m.OrderStatusChanges.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordCacheInvalidation(key string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(key).Inc()
}

func (m *Metrics) RecordNotifyFailure(kind string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(kind).Inc()
}
