package bksd

import "testing"

func TestMetricsRecordDevices(t *testing.T) {
	m := NewMetrics()
	m.RecordDeviceAttached()
	m.RecordDeviceAttached()
	m.RecordDeviceDetached()

	snap := m.Snapshot()
	if snap.DevicesAttached != 2 {
		t.Errorf("DevicesAttached = %d, want 2", snap.DevicesAttached)
	}
	if snap.DevicesDetached != 1 {
		t.Errorf("DevicesDetached = %d, want 1", snap.DevicesDetached)
	}
}

func TestMetricsRecordJobCompleted(t *testing.T) {
	m := NewMetrics()
	m.RecordJobStarted()
	m.RecordJobCompleted(1024*1024, 10)

	snap := m.Snapshot()
	if snap.JobsStarted != 1 {
		t.Errorf("JobsStarted = %d, want 1", snap.JobsStarted)
	}
	if snap.JobsCompleted != 1 {
		t.Errorf("JobsCompleted = %d, want 1", snap.JobsCompleted)
	}
	if snap.BytesCopied != 1024*1024 {
		t.Errorf("BytesCopied = %d, want %d", snap.BytesCopied, 1024*1024)
	}
	if snap.AvgDurationSecs != 10 {
		t.Errorf("AvgDurationSecs = %v, want 10", snap.AvgDurationSecs)
	}
}

func TestMetricsRecordJobFailed(t *testing.T) {
	m := NewMetrics()
	m.RecordJobFailed(5)

	snap := m.Snapshot()
	if snap.JobsFailed != 1 {
		t.Errorf("JobsFailed = %d, want 1", snap.JobsFailed)
	}
}

func TestMetricsDurationHistogramBucketing(t *testing.T) {
	m := NewMetrics()
	m.RecordJobCompleted(0, 2) // falls in buckets >= 5, 15, 30...

	snap := m.Snapshot()
	// bucket[0] is 1s; a 2s job should not land in it.
	if snap.DurationHistogram[0] != 0 {
		t.Errorf("1s bucket = %d, want 0", snap.DurationHistogram[0])
	}
	// bucket[1] is 5s; a 2s job should land in it.
	if snap.DurationHistogram[1] != 1 {
		t.Errorf("5s bucket = %d, want 1", snap.DurationHistogram[1])
	}
}

func TestMetricsRecordNotification(t *testing.T) {
	m := NewMetrics()
	m.RecordNotification(true)
	m.RecordNotification(false)

	snap := m.Snapshot()
	if snap.NotificationsSent != 1 {
		t.Errorf("NotificationsSent = %d, want 1", snap.NotificationsSent)
	}
	if snap.NotificationsFailed != 1 {
		t.Errorf("NotificationsFailed = %d, want 1", snap.NotificationsFailed)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordDeviceAttached()
	m.RecordJobCompleted(100, 1)
	m.Reset()

	snap := m.Snapshot()
	if snap.DevicesAttached != 0 || snap.JobsCompleted != 0 || snap.BytesCopied != 0 {
		t.Error("Reset should zero all counters")
	}
}
