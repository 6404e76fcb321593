// Package metrics exports the core's counters and histograms via Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"academy/internal/domain/entity"
	"academy/internal/domain/service"
)

// Recorder implements service.MetricsRecorder on a Prometheus registry.
type Recorder struct {
	loginAttempts   *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	geoLookup       *prometheus.HistogramVec
}

// NewRecorder registers the collectors on the given registry and returns the recorder.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome and failure reason.",
		}, []string{"success", "reason"}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Subsystem: "auth",
			Name:      "anomalies_detected_total",
			Help:      "Detected login anomalies by kind.",
		}, []string{"kind"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Subsystem: "auth",
			Name:      "alerts_dispatched_total",
			Help:      "Security alert dispatches by kind and delivery outcome.",
		}, []string{"kind", "delivered"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Subsystem: "auth",
			Name:      "token_reconciliations_total",
			Help:      "Token reconciliations by result.",
		}, []string{"skipped", "session_invalid"}),
		geoLookup: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "academy",
			Subsystem: "auth",
			Name:      "geo_lookup_duration_seconds",
			Help:      "External geolocation lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"failed"}),
	}
}

// NewDefaultRecorder registers on the default registry, which the /metrics
// endpoint serves.
func NewDefaultRecorder() service.MetricsRecorder {
	return NewRecorder(prometheus.DefaultRegisterer)
}

func (r *Recorder) RecordLoginAttempt(success bool, reason entity.FailureReason) {
	r.loginAttempts.WithLabelValues(strconv.FormatBool(success), string(reason)).Inc()
}

func (r *Recorder) RecordAnomaly(kind entity.AnomalyKind) {
	r.anomalies.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) RecordAlert(kind entity.AnomalyKind, delivered bool) {
	r.alerts.WithLabelValues(string(kind), strconv.FormatBool(delivered)).Inc()
}

func (r *Recorder) RecordReconciliation(skipped, sessionInvalid bool) {
	r.reconciliations.WithLabelValues(strconv.FormatBool(skipped), strconv.FormatBool(sessionInvalid)).Inc()
}

func (r *Recorder) RecordGeoLookup(duration time.Duration, failed bool) {
	r.geoLookup.WithLabelValues(strconv.FormatBool(failed)).Observe(duration.Seconds())
}
