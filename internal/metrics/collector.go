package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram slot.
type MetricID uint16

const (
	MetricSignInSuccess MetricID = iota
	MetricSignInFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshCoalesced
	MetricRefreshSkippedFresh
	MetricResumeSuccess
	MetricResumeTransient
	MetricResumeInvalid
	MetricSignOut
	MetricSignOutAll
	MetricSignOutRemoteFailure
	MetricTokensCleared
	MetricBiometricGranted
	MetricBiometricDenied
	MetricBiometricUnavailable
	MetricPreferenceEnabled
	MetricPreferenceDisabled
	MetricLockEngaged
	MetricLockReleased
	MetricForcedSignOut
	MetricRefreshLatency
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// bucket upper bounds in nanoseconds; the last slot is +Inf.
var histBoundsNanos = [histBucketCount - 1]int64{
	int64(5 * time.Millisecond),
	int64(10 * time.Millisecond),
	int64(25 * time.Millisecond),
	int64(50 * time.Millisecond),
	int64(100 * time.Millisecond),
	int64(250 * time.Millisecond),
	int64(time.Second),
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls which metric families are collected.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds atomic counters and optional latency histograms. A zero or
// disabled Metrics makes every operation a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]metricHistogram
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= MetricIDCount {
		return
	}
	nanos := int64(d)
	slot := histBucketCount - 1
	for i, bound := range histBoundsNanos {
		if nanos <= bound {
			slot = i
			break
		}
	}
	atomic.AddUint64(&m.histograms[id].buckets[slot], 1)
}

// Snapshot is a point-in-time deep copy of all non-zero metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// Snapshot copies current values. The copy is independent of later updates.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   make(map[MetricID]uint64),
		Histograms: make(map[MetricID][]uint64),
	}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v != 0 {
			snap.Counters[id] = v
		}
	}
	if m.enableLatency {
		for id := MetricID(0); id < MetricIDCount; id++ {
			var total uint64
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
				total += buckets[i]
			}
			if total != 0 {
				snap.Histograms[id] = buckets
			}
		}
	}
	return snap
}
