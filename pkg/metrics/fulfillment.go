package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "bookstore"

// Cart mutation labels.
const (
	CartOpAdd    = "add"
	CartOpUpdate = "update"
	CartOpDelete = "delete"
)

// FulfillmentMetrics records cart and order activity. A nil receiver is a no-op
// so services can run without a registry in tests.
type FulfillmentMetrics struct {
	ordersCreated prometheus.Counter
	orderTotal    prometheus.Histogram
	statusUpdates *prometheus.CounterVec
	cartMutations *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders assembled from shopping carts.",
	})
	orderTotal := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_total_amount",
		Help:      "Distribution of order totals at creation time.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000},
	})
	statusUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_updates_total",
		Help:      "Order status assignments by resulting status.",
	}, []string{"status"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart item mutations by operation.",
	}, []string{"op"})
	reg.MustRegister(ordersCreated, orderTotal, statusUpdates, cartMutations)
	return &FulfillmentMetrics{
		ordersCreated: ordersCreated,
		orderTotal:    orderTotal,
		statusUpdates: statusUpdates,
		cartMutations: cartMutations,
	}
}

// ObserveOrderCreated counts the order and records its total.
func (m *FulfillmentMetrics) ObserveOrderCreated(total decimal.Decimal) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
	amount, _ := total.Float64()
	m.orderTotal.Observe(amount)
}

// IncStatusUpdate counts a status assignment.
func (m *FulfillmentMetrics) IncStatusUpdate(status string) {
	if m == nil || m.statusUpdates == nil {
		return
	}
	m.statusUpdates.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncCartMutation counts a cart item mutation.
func (m *FulfillmentMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
