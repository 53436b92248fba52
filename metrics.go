package bksd

import (
	"sync/atomic"
	"time"
)

// DurationBuckets defines the job-duration histogram buckets in seconds.
// Buckets cover from 1s to 1h with widening spacing. Each bucket counts
// every job whose duration is at or below its bound, so counts are
// cumulative; jobs longer than 1h fall in no bucket.
var DurationBuckets = []float64{
	1, 5, 15, 30, 60, 300, 900, 3600,
}

const numDurationBuckets = 8

// Metrics tracks operational statistics for the running daemon. All
// fields are safe for concurrent use; jobs across different devices update
// the same Metrics instance without any external locking.
type Metrics struct {
	DevicesAttached atomic.Uint64
	DevicesDetached atomic.Uint64

	JobsStarted   atomic.Uint64
	JobsCompleted atomic.Uint64
	JobsFailed    atomic.Uint64

	BytesCopied      atomic.Uint64
	VerificationFails atomic.Uint64

	NotificationsSent   atomic.Uint64
	NotificationsFailed atomic.Uint64

	TotalDurationSecs atomic.Uint64 // accumulated whole seconds, for average
	DurationBuckets   [numDurationBuckets]atomic.Uint64

	StartTime atomic.Int64 // daemon start timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDeviceAttached records a successful device attach.
func (m *Metrics) RecordDeviceAttached() { m.DevicesAttached.Add(1) }

// RecordDeviceDetached records a device detach, whether clean or forced.
func (m *Metrics) RecordDeviceDetached() { m.DevicesDetached.Add(1) }

// RecordJobStarted records a newly created job.
func (m *Metrics) RecordJobStarted() { m.JobsStarted.Add(1) }

// RecordJobCompleted records a job reaching the complete terminal state.
func (m *Metrics) RecordJobCompleted(bytesCopied int64, durationSecs float64) {
	m.JobsCompleted.Add(1)
	m.BytesCopied.Add(uint64(bytesCopied))
	m.recordDuration(durationSecs)
}

// RecordJobFailed records a job reaching the failed terminal state.
func (m *Metrics) RecordJobFailed(durationSecs float64) {
	m.JobsFailed.Add(1)
	m.recordDuration(durationSecs)
}

// RecordVerificationFailure records a hash mismatch detected by the
// verifier.
func (m *Metrics) RecordVerificationFailure() { m.VerificationFails.Add(1) }

// RecordNotification records the outcome of dispatching a notification.
func (m *Metrics) RecordNotification(success bool) {
	if success {
		m.NotificationsSent.Add(1)
	} else {
		m.NotificationsFailed.Add(1)
	}
}

func (m *Metrics) recordDuration(durationSecs float64) {
	m.TotalDurationSecs.Add(uint64(durationSecs))
	for i, bucket := range DurationBuckets {
		if durationSecs <= bucket {
			m.DurationBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	DevicesAttached uint64
	DevicesDetached uint64

	JobsStarted   uint64
	JobsCompleted uint64
	JobsFailed    uint64

	BytesCopied       uint64
	VerificationFails uint64

	NotificationsSent   uint64
	NotificationsFailed uint64

	AvgDurationSecs  float64
	DurationHistogram [numDurationBuckets]uint64

	UptimeNs uint64
}

// Snapshot creates a point-in-time snapshot of metrics for status queries.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DevicesAttached:     m.DevicesAttached.Load(),
		DevicesDetached:     m.DevicesDetached.Load(),
		JobsStarted:         m.JobsStarted.Load(),
		JobsCompleted:       m.JobsCompleted.Load(),
		JobsFailed:          m.JobsFailed.Load(),
		BytesCopied:         m.BytesCopied.Load(),
		VerificationFails:   m.VerificationFails.Load(),
		NotificationsSent:   m.NotificationsSent.Load(),
		NotificationsFailed: m.NotificationsFailed.Load(),
		UptimeNs:            uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}

	terminal := snap.JobsCompleted + snap.JobsFailed
	if terminal > 0 {
		snap.AvgDurationSecs = float64(m.TotalDurationSecs.Load()) / float64(terminal)
	}
	for i := 0; i < numDurationBuckets; i++ {
		snap.DurationHistogram[i] = m.DurationBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters. Used by tests.
func (m *Metrics) Reset() {
	m.DevicesAttached.Store(0)
	m.DevicesDetached.Store(0)
	m.JobsStarted.Store(0)
	m.JobsCompleted.Store(0)
	m.JobsFailed.Store(0)
	m.BytesCopied.Store(0)
	m.VerificationFails.Store(0)
	m.NotificationsSent.Store(0)
	m.NotificationsFailed.Store(0)
	m.TotalDurationSecs.Store(0)
	for i := 0; i < numDurationBuckets; i++ {
		m.DurationBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}
