package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestSiteMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSiteMetrics(reg)

	m.ObserveSelection("package", "mini")
	m.ObserveSelection("package", "mini")
	m.ObserveTransition("corporate", "advance", false)
	m.ObserveSubmission("bookings", nil)
	m.ObserveStorageError("get", "vocalVentState")
	m.ObserveGatewayLatency("create", "chats/abc/messages", 20*time.Millisecond)
	m.ObservePublishFailure("chats/abc/messages")

	if got := counterValue(t, reg, "vocalvent_flows_selections_total", map[string]string{"kind": "package", "id": "mini"}); got != 2 {
		t.Fatalf("expected 2 selections, got %v", got)
	}
	if got := counterValue(t, reg, "vocalvent_flows_wizard_transitions_total", map[string]string{"outcome": "rejected"}); got != 1 {
		t.Fatalf("expected 1 rejected transition, got %v", got)
	}
	if got := counterValue(t, reg, "vocalvent_flows_submissions_total", map[string]string{"status": "ok"}); got != 1 {
		t.Fatalf("expected 1 submission, got %v", got)
	}
	if got := counterValue(t, reg, "vocalvent_prefs_storage_errors_total", map[string]string{"key": "vocalVentState"}); got != 1 {
		t.Fatalf("expected 1 storage error, got %v", got)
	}
	if got := counterValue(t, reg, "vocalvent_gateway_latency_seconds", map[string]string{"collection": "chats/*/messages"}); got != 1 {
		t.Fatalf("expected 1 latency sample, got %v", got)
	}
	if got := counterValue(t, reg, "vocalvent_gateway_publish_failures_total", map[string]string{"collection": "chats/*/messages"}); got != 1 {
		t.Fatalf("expected 1 publish failure, got %v", got)
	}
}

func TestCollectionLabel(t *testing.T) {
	cases := map[string]string{
		"bookings":           "bookings",
		"chats/abc/messages": "chats/*/messages",
	}
	for in, want := range cases {
		if got := collectionLabel(in); got != want {
			t.Fatalf("collectionLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSiteMetricsNilSafe(t *testing.T) {
	var m *SiteMetrics
	m.ObserveSelection("package", "mini")
	m.ObserveTransition("booking", "advance", true)
	m.ObserveSubmission("bookings", nil)
	m.ObserveStorageError("set", "darkMode")
	m.ObserveGatewayLatency("query", "bookings", time.Millisecond)
}
