package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SiteMetrics exposes counters/histograms for visitor flows and the stores
// behind them.
type SiteMetrics struct {
	selections     *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	publishFailed  *prometheus.CounterVec
}

func NewSiteMetrics(reg prometheus.Registerer) *SiteMetrics {
	m := &SiteMetrics{
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vocalvent",
			Subsystem: "flows",
			Name:      "selections_total",
			Help:      "Package, platform and duration selections",
		}, []string{"kind", "id"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vocalvent",
			Subsystem: "flows",
			Name:      "wizard_transitions_total",
			Help:      "Wizard transitions by flow, operation and outcome",
		}, []string{"flow", "op", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vocalvent",
			Subsystem: "flows",
			Name:      "submissions_total",
			Help:      "Records handed to the gateway",
		}, []string{"collection", "status"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vocalvent",
			Subsystem: "prefs",
			Name:      "storage_errors_total",
			Help:      "Preference reads and writes that degraded to defaults",
		}, []string{"op", "key"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vocalvent",
			Subsystem: "gateway",
			Name:      "latency_seconds",
			Help:      "Latency of document store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "collection"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vocalvent",
			Subsystem: "gateway",
			Name:      "publish_failures_total",
			Help:      "Stored records whose change notification could not be published",
		}, []string{"collection"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.selections, m.transitions, m.submissions, m.storageErrors, m.gatewayLatency, m.publishFailed)
	return m
}

func (m *SiteMetrics) ObserveSelection(kind, id string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(kind, id).Inc()
}

func (m *SiteMetrics) ObserveTransition(flow, op string, ok bool) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if !ok {
		outcome = "rejected"
	}
	m.transitions.WithLabelValues(flow, op, outcome).Inc()
}

func (m *SiteMetrics) ObserveSubmission(collection string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.submissions.WithLabelValues(collection, status).Inc()
}

// ObserveStorageError satisfies session.StorageObserver.
func (m *SiteMetrics) ObserveStorageError(op, key string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op, key).Inc()
}

// ObserveGatewayLatency satisfies gateway.LatencyObserver. Subcollection
// paths are collapsed so room ids do not become label values.
func (m *SiteMetrics) ObserveGatewayLatency(op, collection string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(op, collectionLabel(collection)).Observe(d.Seconds())
}

// ObservePublishFailure satisfies gateway.PublishObserver.
func (m *SiteMetrics) ObservePublishFailure(collection string) {
	if m == nil {
		return
	}
	m.publishFailed.WithLabelValues(collectionLabel(collection)).Inc()
}

func collectionLabel(collection string) string {
	first, last := -1, -1
	for i := 0; i < len(collection); i++ {
		if collection[i] == '/' {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return collection
	}
	return collection[:first] + "/*" + collection[last:]
}
