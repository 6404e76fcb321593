package service

import (
	"time"

	"academy/internal/domain/entity"
)

// MetricsRecorder is the sink for the core's counters and histograms. The core
// records into it and has no dependency on how the values are exported.
type MetricsRecorder interface {
	// RecordLoginAttempt counts one attempt by outcome. reason is empty on success.
	RecordLoginAttempt(success bool, reason entity.FailureReason)

	// RecordAnomaly counts one detected anomaly condition.
	RecordAnomaly(kind entity.AnomalyKind)

	// RecordAlert counts one alert dispatch by outcome.
	RecordAlert(kind entity.AnomalyKind, delivered bool)

	// RecordGeoLookup observes one external geolocation lookup.
	RecordGeoLookup(duration time.Duration, failed bool)

	// RecordReconciliation counts one token reconciliation by result.
	RecordReconciliation(skipped, sessionInvalid bool)
}
