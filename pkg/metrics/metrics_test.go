package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func TestFulfillmentMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)

	m.ObserveOrderCreated(decimal.RequireFromString("110.00"))
	m.ObserveOrderCreated(decimal.RequireFromString("50"))
	m.IncStatusUpdate("DELIVERED")
	m.IncCartMutation(CartOpAdd)
	m.IncCartMutation(CartOpAdd)
	m.IncCartMutation("")

	if got := testutil.ToFloat64(m.ordersCreated); got != 2 {
		t.Fatalf("expected 2 orders, got %f", got)
	}
	if got := testutil.ToFloat64(m.cartMutations.WithLabelValues(CartOpAdd)); got != 2 {
		t.Fatalf("expected 2 add mutations, got %f", got)
	}
	if got := testutil.ToFloat64(m.cartMutations.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty op to land on unknown, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bookstore_order_status_updates_total", "status", "DELIVERED"); err != nil {
		t.Fatalf("fetch status updates: %v", err)
	} else if got != 1 {
		t.Fatalf("expected status updates=1, got %f", got)
	}
	if got := fetchHistogramSum(mfs, "bookstore_order_total_amount"); got != 160 {
		t.Fatalf("expected order total sum 160, got %f", got)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncPublished("order_created")
	m.IncFailure("order_status_changed")
	m.ObserveBatch(20 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bookstore_outbox_published_total", "event_type", "order_created"); err != nil || got != 1 {
		t.Fatalf("expected published=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bookstore_outbox_failures_total", "event_type", "order_status_changed"); err != nil || got != 1 {
		t.Fatalf("expected failures=1, got %f (%v)", got, err)
	}
	if got := fetchHistogramSum(mfs, "bookstore_outbox_batch_duration_seconds"); got <= 0 {
		t.Fatalf("expected batch duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var f *FulfillmentMetrics
	f.ObserveOrderCreated(decimal.NewFromInt(1))
	f.IncStatusUpdate("PENDING")
	f.IncCartMutation(CartOpDelete)

	var o *OutboxMetrics
	o.IncPublished("x")
	o.IncFailure("x")
	o.ObserveBatch(time.Second)

	unregistered := NewFulfillmentMetrics(nil)
	unregistered.ObserveOrderCreated(decimal.NewFromInt(1))
	unregistered.IncCartMutation(CartOpUpdate)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("counter %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetHistogram().GetSampleSum()
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
