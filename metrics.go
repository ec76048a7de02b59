package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricEnrollmentStarted is an exported constant or variable used by the verification engine.
	MetricEnrollmentStarted MetricID = iota
	// MetricEnrollmentCompleted is an exported constant or variable used by the verification engine.
	MetricEnrollmentCompleted
	// MetricEnrollmentFailed is an exported constant or variable used by the verification engine.
	MetricEnrollmentFailed
	// MetricTOTPSuccess is an exported constant or variable used by the verification engine.
	MetricTOTPSuccess
	// MetricTOTPFailure is an exported constant or variable used by the verification engine.
	MetricTOTPFailure
	// MetricAccountLocked is an exported constant or variable used by the verification engine.
	MetricAccountLocked
	// MetricLockedRejection is an exported constant or variable used by the verification engine.
	MetricLockedRejection
	// MetricRecoveryCodeUsed is an exported constant or variable used by the verification engine.
	MetricRecoveryCodeUsed
	// MetricRecoveryCodeFailed is an exported constant or variable used by the verification engine.
	MetricRecoveryCodeFailed
	// MetricRecoveryCodeRegenerated is an exported constant or variable used by the verification engine.
	MetricRecoveryCodeRegenerated
	// MetricTwoFactorDisabled is an exported constant or variable used by the verification engine.
	MetricTwoFactorDisabled
	// MetricPasskeyRegistrationStarted is an exported constant or variable used by the verification engine.
	MetricPasskeyRegistrationStarted
	// MetricPasskeyRegistered is an exported constant or variable used by the verification engine.
	MetricPasskeyRegistered
	// MetricPasskeyLoginStarted is an exported constant or variable used by the verification engine.
	MetricPasskeyLoginStarted
	// MetricPasskeyLoginSuccess is an exported constant or variable used by the verification engine.
	MetricPasskeyLoginSuccess
	// MetricPasskeyLoginFailure is an exported constant or variable used by the verification engine.
	MetricPasskeyLoginFailure
	// MetricCounterMismatch is an exported constant or variable used by the verification engine.
	MetricCounterMismatch
	// MetricChallengeReplay is an exported constant or variable used by the verification engine.
	MetricChallengeReplay
	// MetricDeviceLimitHit is an exported constant or variable used by the verification engine.
	MetricDeviceLimitHit
	// MetricOAuthExchangeSuccess is an exported constant or variable used by the verification engine.
	MetricOAuthExchangeSuccess
	// MetricOAuthExchangeFailure is an exported constant or variable used by the verification engine.
	MetricOAuthExchangeFailure
	// MetricVerifyLatency is an exported constant or variable used by the verification engine.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments a counter. No-op on a nil or disabled receiver.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the verify-latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram into maps for exporters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
