// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting gateway runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Internal counters (source of truth for the JSON snapshot)
var (
	connectAttempts  int64
	connectFailures  int64
	disconnects      int64
	stanzasReceived  int64
	stanzasMalformed int64
	pushesDelivered  int64
	pushesFailed     int64
	lastConnected    int64
)

const counterInc int64 = 1

// Prometheus collectors
var (
	promConnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fpush_connect_attempts_total",
			Help: "Total component connection attempts",
		},
	)
	promConnectFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fpush_connect_failures_total",
			Help: "Total failed component connection attempts",
		},
	)
	promDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fpush_disconnects_total",
			Help: "Total component connection losses after a successful handshake",
		},
	)
	promStanzas = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fpush_stanzas_total",
			Help: "Total stanzas read from the component stream",
		},
		[]string{"status"},
	)
	promPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fpush_pushes_total",
			Help: "Total push dispatches by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)
	promPushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "fpush_push_duration_seconds",
			Help: "Duration of push provider calls",
			Buckets: []float64{
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2,
				5,
				10,
				30,
			},
		},
	)
	promLastConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fpush_last_connected_timestamp_seconds",
			Help: "Unix timestamp of the last successful handshake",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promConnectAttempts,
		promConnectFailures,
		promDisconnects,
		promStanzas,
		promPushes,
		promPushDuration,
		promLastConnected,
	)
}

// IncConnectAttempt counts a component connection attempt.
func IncConnectAttempt() {
	atomic.AddInt64(&connectAttempts, counterInc)
	promConnectAttempts.Inc()
}

// IncConnectFailure counts a failed component connection attempt.
func IncConnectFailure() {
	atomic.AddInt64(&connectFailures, counterInc)
	promConnectFailures.Inc()
}

// IncDisconnect counts a connection loss after a successful handshake.
func IncDisconnect() {
	atomic.AddInt64(&disconnects, counterInc)
	promDisconnects.Inc()
}

// IncStanzaReceived counts a successfully parsed stanza.
func IncStanzaReceived() {
	atomic.AddInt64(&stanzasReceived, counterInc)
	promStanzas.WithLabelValues("ok").Inc()
}

// IncStanzaMalformed counts a stanza that was skipped because it failed to
// parse.
func IncStanzaMalformed() {
	atomic.AddInt64(&stanzasMalformed, counterInc)
	promStanzas.WithLabelValues("malformed").Inc()
}

// IncPush counts one push dispatch by backend and outcome.
func IncPush(backend, outcome string) {
	if outcome == "delivered" {
		atomic.AddInt64(&pushesDelivered, counterInc)
	} else {
		atomic.AddInt64(&pushesFailed, counterInc)
	}
	promPushes.WithLabelValues(backend, outcome).Inc()
}

// ObservePushDuration records the duration (in seconds) of one provider
// call.
func ObservePushDuration(seconds float64) {
	promPushDuration.Observe(seconds)
}

// SetLastConnected stores the provided time as the last successful
// handshake timestamp.
func SetLastConnected(t time.Time) {
	atomic.StoreInt64(&lastConnected, t.Unix())
	promLastConnected.Set(float64(t.Unix()))
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	ConnectAttempts    int64  `json:"connect_attempts"`
	ConnectFailures    int64  `json:"connect_failures"`
	Disconnects        int64  `json:"disconnects"`
	StanzasReceived    int64  `json:"stanzas_received"`
	StanzasMalformed   int64  `json:"stanzas_malformed"`
	PushesDelivered    int64  `json:"pushes_delivered"`
	PushesFailed       int64  `json:"pushes_failed"`
	LastConnected      int64  `json:"last_connected_timestamp"`
	LastConnectedHuman string `json:"last_connected_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastConnected)
	return StatsSnapshot{
		ConnectAttempts:    atomic.LoadInt64(&connectAttempts),
		ConnectFailures:    atomic.LoadInt64(&connectFailures),
		Disconnects:        atomic.LoadInt64(&disconnects),
		StanzasReceived:    atomic.LoadInt64(&stanzasReceived),
		StanzasMalformed:   atomic.LoadInt64(&stanzasMalformed),
		PushesDelivered:    atomic.LoadInt64(&pushesDelivered),
		PushesFailed:       atomic.LoadInt64(&pushesFailed),
		LastConnected:      ts,
		LastConnectedHuman: time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as a
// JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
