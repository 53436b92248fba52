package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
	"github.com/joshgermon/bksd/internal/progress"
)

type stubAdapter struct {
	devices []model.BlockDevice
	listErr error
}

func (s *stubAdapter) Start(ctx context.Context, sink chan<- interfaces.Event) error { return nil }
func (s *stubAdapter) Stop() error                                                  { return nil }
func (s *stubAdapter) ListDevices() ([]model.BlockDevice, error)                    { return s.devices, s.listErr }
func (s *stubAdapter) CleanupDevice(dev model.BlockDevice) error                    { return nil }

type stubStore struct {
	jobs    []model.Job
	history map[string][]model.JobStatusEntry
}

func (s *stubStore) CreateJob(ctx context.Context, job model.Job) error { return nil }
func (s *stubStore) AppendStatus(ctx context.Context, entry model.JobStatusEntry) error {
	return nil
}
func (s *stubStore) ListJobs(ctx context.Context, limit, offset int, status model.JobStatusTag) ([]model.Job, error) {
	return s.jobs, nil
}
func (s *stubStore) GetWithHistory(ctx context.Context, jobID string) (model.Job, []model.JobStatusEntry, error) {
	for _, j := range s.jobs {
		if j.ID == jobID {
			return j, s.history[jobID], nil
		}
	}
	return model.Job{}, nil, errors.New("job not found")
}
func (s *stubStore) Close() error { return nil }

func TestStatusCombinesDevicesAndActiveJobs(t *testing.T) {
	reg := progress.New()
	reg.Update("job-1", model.InProgress(100, 50, "a.txt", nil))

	svc := &Service{
		Adapter:  &stubAdapter{devices: []model.BlockDevice{{UUID: "d1", Label: "BACKUP", Filesystem: model.FSExt4}}},
		Progress: reg,
		Store:    &stubStore{},
	}

	status, err := svc.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Devices) != 1 || status.Devices[0].Label != "BACKUP" {
		t.Errorf("unexpected devices: %+v", status.Devices)
	}
	if _, ok := status.ActiveJobs["job-1"]; !ok {
		t.Error("expected job-1 to appear in ActiveJobs")
	}
	if status.ActiveJobCount != 1 {
		t.Errorf("ActiveJobCount = %d, want 1", status.ActiveJobCount)
	}
}

func TestStatusPropagatesAdapterError(t *testing.T) {
	svc := &Service{
		Adapter:  &stubAdapter{listErr: errors.New("boom")},
		Progress: progress.New(),
		Store:    &stubStore{},
	}
	if _, err := svc.Status(); err == nil {
		t.Fatal("expected Status to propagate the adapter error")
	}
}

func TestListJobsReportsLatestStatus(t *testing.T) {
	now := time.Now()
	store := &stubStore{
		jobs: []model.Job{{ID: "job-1", DriveID: "d1", Destination: "/x", CreatedAt: now}},
		history: map[string][]model.JobStatusEntry{
			"job-1": {
				{Status: model.StatusReady},
				{Status: model.StatusInProgress},
				{Status: model.StatusComplete},
			},
		},
	}
	svc := &Service{Adapter: &stubAdapter{}, Progress: progress.New(), Store: store}

	summaries, err := svc.ListJobs(context.Background(), 0, 0, "")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Status != model.StatusComplete {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

func TestJobDetailDefaultsToReadyWithNoHistory(t *testing.T) {
	store := &stubStore{jobs: []model.Job{{ID: "job-1", DriveID: "d1"}}}
	svc := &Service{Adapter: &stubAdapter{}, Progress: progress.New(), Store: store}

	detail, err := svc.JobDetail(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	if detail.Job.Status != model.StatusReady {
		t.Errorf("Status = %q, want ready", detail.Job.Status)
	}
}

func TestJobDetailPropagatesStoreError(t *testing.T) {
	svc := &Service{Adapter: &stubAdapter{}, Progress: progress.New(), Store: &stubStore{}}
	if _, err := svc.JobDetail(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown job ID")
	}
}

var _ interfaces.Adapter = (*stubAdapter)(nil)
var _ interfaces.Store = (*stubStore)(nil)
