package bksd

import (
	"context"
	"testing"
	"time"

	"github.com/joshgermon/bksd/internal/config"
	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BackupDirectory = t.TempDir()
	cfg.MountBase = t.TempDir()
	cfg.VerifyTransfers = false
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDaemonAttachRunsJobToCompletion(t *testing.T) {
	mockAdapter := NewMockAdapter()
	mockEngine := &MockEngine{
		Statuses: []model.TransferStatus{model.InProgress(100, 50, "a.txt", nil)},
		Result:   model.TransferResult{TotalBytes: 100, DurationSecs: 1},
	}
	mockNotifier := &MockNotifier{}
	mockStore := NewMockStore()

	daemon, err := New(newTestConfig(t), &Options{
		Logger:   nopLogger{},
		Adapter:  mockAdapter,
		Engine:   mockEngine,
		Notifier: mockNotifier,
		Store:    mockStore,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- daemon.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return mockAdapter.CallCounts()["start"] == 1 })

	dev := model.BlockDevice{UUID: "drive-1", MountPoint: "/mnt/drive-1", Filesystem: model.FSExt4}
	mockAdapter.Emit(interfaces.EventDeviceAdded, dev)

	waitFor(t, time.Second, func() bool { return len(mockAdapter.CleanedUp()) == 1 })

	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if mockEngine.CallCount() != 1 {
		t.Fatalf("engine Transfer called %d times, want 1", mockEngine.CallCount())
	}
	if got := mockEngine.LastRequest().Source; got != dev.MountPoint {
		t.Errorf("transfer request source = %q, want %q", got, dev.MountPoint)
	}

	events := mockNotifier.Events()
	if len(events) != 2 {
		t.Fatalf("notifier saw %d events, want 2 (started, completed)", len(events))
	}
	if events[0].Kind != model.EventStarted {
		t.Errorf("first event = %v, want EventStarted", events[0].Kind)
	}
	if events[1].Kind != model.EventCompleted {
		t.Errorf("second event = %v, want EventCompleted", events[1].Kind)
	}

	jobs, err := mockStore.ListJobs(context.Background(), 0, 0, "")
	if err != nil || len(jobs) != 1 {
		t.Fatalf("ListJobs = %v, %v; want one job", jobs, err)
	}
	_, history, err := mockStore.GetWithHistory(context.Background(), jobs[0].ID)
	if err != nil {
		t.Fatalf("GetWithHistory: %v", err)
	}
	if last := history[len(history)-1]; last.Status != model.StatusComplete {
		t.Errorf("last status = %q, want complete", last.Status)
	}

	snap := daemon.Metrics().Snapshot()
	if snap.JobsCompleted != 1 {
		t.Errorf("JobsCompleted = %d, want 1", snap.JobsCompleted)
	}
}

func TestDaemonAttachStatusLogOmitsInProgressButRecordsCopyComplete(t *testing.T) {
	mockAdapter := NewMockAdapter()
	mockEngine := &MockEngine{
		Statuses: []model.TransferStatus{
			model.InProgress(100, 25, "a.txt", nil),
			model.InProgress(100, 75, "b.txt", nil),
		},
		Result: model.TransferResult{TotalBytes: 100, DurationSecs: 1},
	}
	mockStore := NewMockStore()

	daemon, err := New(newTestConfig(t), &Options{
		Logger:   nopLogger{},
		Adapter:  mockAdapter,
		Engine:   mockEngine,
		Notifier: &MockNotifier{},
		Store:    mockStore,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- daemon.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return mockAdapter.CallCounts()["start"] == 1 })
	dev := model.BlockDevice{UUID: "drive-3", MountPoint: "/mnt/drive-3", Filesystem: model.FSExt4}
	mockAdapter.Emit(interfaces.EventDeviceAdded, dev)

	waitFor(t, time.Second, func() bool { return len(mockAdapter.CleanedUp()) == 1 })
	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	jobs, err := mockStore.ListJobs(context.Background(), 0, 0, "")
	if err != nil || len(jobs) != 1 {
		t.Fatalf("ListJobs = %v, %v; want one job", jobs, err)
	}
	_, history, err := mockStore.GetWithHistory(context.Background(), jobs[0].ID)
	if err != nil {
		t.Fatalf("GetWithHistory: %v", err)
	}

	var tags []model.JobStatusTag
	for _, e := range history {
		tags = append(tags, e.Status)
	}
	want := []model.JobStatusTag{model.StatusReady, model.StatusCopyComplete, model.StatusComplete}
	if len(tags) != len(want) {
		t.Fatalf("status log = %v, want %v", tags, want)
	}
	for i, tag := range want {
		if tags[i] != tag {
			t.Errorf("status log[%d] = %q, want %q (full log: %v)", i, tags[i], tag, tags)
		}
	}
}

func TestDaemonAttachTransferFailureSkipsVerifyAndNotifiesFailed(t *testing.T) {
	mockAdapter := NewMockAdapter()
	mockEngine := &MockEngine{
		Statuses: []model.TransferStatus{model.Failed("device removed mid-transfer")},
		Err:      NewJobError("copy", "", ErrCodeDeviceRemoved, "device removed"),
	}
	mockNotifier := &MockNotifier{}
	mockStore := NewMockStore()

	daemon, err := New(newTestConfig(t), &Options{
		Logger:   nopLogger{},
		Adapter:  mockAdapter,
		Engine:   mockEngine,
		Notifier: mockNotifier,
		Store:    mockStore,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- daemon.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return mockAdapter.CallCounts()["start"] == 1 })
	dev := model.BlockDevice{UUID: "drive-2", MountPoint: "/mnt/drive-2", Filesystem: model.FSVfat}
	mockAdapter.Emit(interfaces.EventDeviceAdded, dev)

	waitFor(t, time.Second, func() bool { return len(mockAdapter.CleanedUp()) == 1 })
	cancel()
	<-runDone

	events := mockNotifier.Events()
	if len(events) != 2 || events[1].Kind != model.EventFailed {
		t.Fatalf("expected [started, failed] events, got %v", events)
	}

	snap := daemon.Metrics().Snapshot()
	if snap.JobsFailed != 1 {
		t.Errorf("JobsFailed = %d, want 1", snap.JobsFailed)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.TransferEngine = "not_a_real_engine"
	if _, err := New(cfg, &Options{
		Adapter: NewMockAdapter(), Engine: &MockEngine{}, Store: NewMockStore(),
	}); err == nil {
		t.Fatal("expected New to reject an unrecognised transfer_engine")
	}
}
