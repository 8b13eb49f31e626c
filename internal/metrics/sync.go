package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync operations as they appear in the op label.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpLoad   = "load"
	OpMirror = "mirror"
)

// Attempt results as they appear in the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// SyncMetrics records what the server cart sync agent does with the network.
type SyncMetrics struct {
	attempts  *prometheus.CounterVec
	skipped   prometheus.Counter
	coalesced prometheus.Counter
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_attempts_total",
		Help: "Server cart requests by operation and result.",
	}, []string{"op", "result"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_local_skipped_total",
		Help: "Syncs skipped because the cart id is a local fallback.",
	})
	coalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_coalesced_total",
		Help: "Scheduled syncs superseded within the debounce window.",
	})
	reg.MustRegister(attempts, skipped, coalesced)
	return &SyncMetrics{
		attempts:  attempts,
		skipped:   skipped,
		coalesced: coalesced,
	}
}

// ObserveAttempt counts one finished request sequence for op.
func (m *SyncMetrics) ObserveAttempt(op string, err error) {
	if m == nil || m.attempts == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.attempts.WithLabelValues(normalizeLabel(op), result).Inc()
}

func (m *SyncMetrics) IncLocalSkipped() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

func (m *SyncMetrics) IncCoalesced() {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.Inc()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
