package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMaskingCollectorRecordsNotifications(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewMaskingCollector(reg)
	if err != nil {
		t.Fatalf("NewMaskingCollector: %v", err)
	}

	collector.ObserveNotification("truck", 5)
	collector.ObserveNotification("truck", 0)
	collector.ObserveNotification("order", 12)

	if got := testutil.ToFloat64(collector.Notifications.WithLabelValues("truck")); got != 2 {
		t.Fatalf("masking_notifications_total{truck} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Notifications.WithLabelValues("order")); got != 1 {
		t.Fatalf("masking_notifications_total{order} = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "masking_delta_size", map[string]string{
		"entity_type": "truck",
	}); count != 2 {
		t.Fatalf("masking_delta_size sample_count = %d, want 2", count)
	}
}

func TestMaskingCollectorGaugesAndGrowth(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewMaskingCollector(reg)
	if err != nil {
		t.Fatalf("NewMaskingCollector: %v", err)
	}

	collector.SetActionSpace(120, 17)
	collector.AddGrowth(20)
	collector.AddGrowth(9)
	collector.SetScenarioCounts(3, 2, 1, 4, 1)

	if got := testutil.ToFloat64(collector.ActionSpaceSize); got != 120 {
		t.Fatalf("masking_action_space_size = %v, want 120", got)
	}
	if got := testutil.ToFloat64(collector.ValidActions); got != 17 {
		t.Fatalf("masking_valid_actions = %v, want 17", got)
	}
	if got := testutil.ToFloat64(collector.GrowthTotal); got != 29 {
		t.Fatalf("masking_space_growth_total = %v, want 29", got)
	}
	if got := testutil.ToFloat64(collector.ScenarioOrders); got != 3 {
		t.Fatalf("scenario_orders = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.ScenarioMicroHubs); got != 1 {
		t.Fatalf("scenario_micro_hubs = %v, want 1", got)
	}
}

func TestMaskingCollectorRegistersTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMaskingCollector(reg)
	if err != nil {
		t.Fatalf("first NewMaskingCollector: %v", err)
	}
	second, err := NewMaskingCollector(reg)
	if err != nil {
		t.Fatalf("second NewMaskingCollector: %v", err)
	}

	// Both handles must drive the same underlying collectors.
	first.AddGrowth(4)
	second.AddGrowth(6)
	if got := testutil.ToFloat64(first.GrowthTotal); got != 10 {
		t.Fatalf("masking_space_growth_total = %v, want 10", got)
	}
}

func TestMetricsHandlerExposesMaskingSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewMaskingCollector(reg)
	if err != nil {
		t.Fatalf("NewMaskingCollector: %v", err)
	}
	collector.SetActionSpace(64, 3)
	collector.ObserveNotification("drone", 2)
	collector.SetScenarioCounts(1, 2, 3, 4, 5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"masking_action_space_size",
		"masking_valid_actions",
		"masking_notifications_total",
		"masking_delta_size",
		"scenario_orders",
		"scenario_micro_hubs",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestEngineCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveTick(2 * time.Millisecond)
	collector.ObserveTick(7 * time.Millisecond)
	collector.SetNotificationsInFlight(3)

	if got := testutil.ToFloat64(collector.TicksTotal); got != 2 {
		t.Fatalf("engine_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.NotificationsInFlight); got != 3 {
		t.Fatalf("engine_notifications_in_flight = %v, want 3", got)
	}
	if count := histogramSampleCount(t, reg, "engine_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("engine_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestCollectorsAreNilSafe(t *testing.T) {
	var masking *MaskingCollector
	masking.SetActionSpace(1, 1)
	masking.ObserveNotification("order", 1)
	masking.AddGrowth(1)
	masking.SetScenarioCounts(1, 1, 1, 1, 1)

	var engine *EngineCollector
	engine.ObserveTick(time.Millisecond)
	engine.SetNotificationsInFlight(1)
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
