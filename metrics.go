package hyphae

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginSuperseded
	MetricPinSuccess
	MetricPinFailure
	MetricPinRateLimited
	MetricRestoreSuccess
	MetricRestoreFailure
	MetricSessionCreated
	MetricLogout
	MetricRevokeFailure
	MetricTransportError
	MetricCredentialPersistFailure
	// MetricLoginLatency is a histogram of backend authentication round trips.
	MetricLoginLatency
	// MetricPinLatency is a histogram of backend PIN checks.
	MetricPinLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:             "login_success",
	MetricLoginFailure:             "login_failure",
	MetricLoginSuperseded:          "login_superseded",
	MetricPinSuccess:               "pin_success",
	MetricPinFailure:               "pin_failure",
	MetricPinRateLimited:           "pin_rate_limited",
	MetricRestoreSuccess:           "restore_success",
	MetricRestoreFailure:           "restore_failure",
	MetricSessionCreated:           "session_created",
	MetricLogout:                   "logout",
	MetricRevokeFailure:            "revoke_failure",
	MetricTransportError:           "transport_error",
	MetricCredentialPersistFailure: "credential_persist_failure",
	MetricLoginLatency:             "login_latency",
	MetricPinLatency:               "pin_latency",
}

// String returns the snake_case name exporters use.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsLatency reports whether id names a histogram rather than a counter.
func (id MetricID) IsLatency() bool {
	return id == MetricLoginLatency || id == MetricPinLatency
}

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

// Metrics is a set of lock-free counters and fixed-bucket histograms. A nil or
// disabled *Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every metric.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !id.IsLatency() {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and, when latency tracking is on, both
// histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsLatency() {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricPinLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// Upper bounds in milliseconds for the first seven buckets; the last is +Inf.
// Backend round trips are slower than in-process work, hence the wide range.
var histBucketBoundsMS = [histBucketCount - 1]int64{25, 50, 100, 250, 500, 1000, 2500}

// HistogramBucketBounds returns the upper bound of each finite bucket.
func HistogramBucketBounds() []time.Duration {
	out := make([]time.Duration, len(histBucketBoundsMS))
	for i, ms := range histBucketBoundsMS {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range histBucketBoundsMS {
		if ms <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
