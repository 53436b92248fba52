package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshgermon/bksd/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bksd.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateJobInsertsJobAndInitialStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := model.Job{ID: "job-1", DriveID: "drive-1", Destination: "/backups/drive-1", CreatedAt: time.Now()}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, history, err := s.GetWithHistory(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetWithHistory: %v", err)
	}
	if got.DriveID != "drive-1" {
		t.Errorf("DriveID = %q, want drive-1", got.DriveID)
	}
	if len(history) != 1 || history[0].Status != model.StatusReady {
		t.Fatalf("expected a single initial ready status, got %+v", history)
	}
}

func TestAppendStatusGrowsHistoryInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := model.Job{ID: "job-1", DriveID: "drive-1", Destination: "/backups/drive-1", CreatedAt: time.Now()}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := s.AppendStatus(ctx, model.JobStatusEntry{JobID: "job-1", Status: model.StatusInProgress, Description: "a.txt"}); err != nil {
		t.Fatalf("AppendStatus: %v", err)
	}
	totalBytes := int64(100)
	durationSecs := 1.5
	if err := s.AppendStatus(ctx, model.JobStatusEntry{JobID: "job-1", Status: model.StatusComplete, TotalBytes: &totalBytes, DurationSecs: &durationSecs}); err != nil {
		t.Fatalf("AppendStatus: %v", err)
	}

	_, history, err := s.GetWithHistory(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetWithHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3 (ready, in_progress, complete)", len(history))
	}
	last := history[2]
	if last.Status != model.StatusComplete || last.TotalBytes == nil || *last.TotalBytes != 100 {
		t.Errorf("unexpected last entry: %+v", last)
	}
}

func TestListJobsFiltersByStatusAndOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := model.Job{ID: "job-1", DriveID: "drive-a", Destination: "/a", CreatedAt: time.Now().Add(-time.Hour)}
	newer := model.Job{ID: "job-2", DriveID: "drive-a", Destination: "/a2", CreatedAt: time.Now()}
	other := model.Job{ID: "job-3", DriveID: "drive-b", Destination: "/b", CreatedAt: time.Now()}
	for _, j := range []model.Job{older, newer, other} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob(%s): %v", j.ID, err)
		}
	}
	// job-3 finishes; job-1 and job-2 stay at their initial ready status.
	if err := s.AppendStatus(ctx, model.JobStatusEntry{JobID: "job-3", Status: model.StatusComplete}); err != nil {
		t.Fatalf("AppendStatus: %v", err)
	}

	jobs, err := s.ListJobs(ctx, 0, 0, model.StatusReady)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "job-2" {
		t.Errorf("jobs[0].ID = %q, want job-2 (newest first)", jobs[0].ID)
	}
}

func TestListJobsRespectsLimitAndOffset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := model.Job{ID: string(rune('a' + i)), DriveID: "drive-1", Destination: "/x", CreatedAt: time.Now().Add(time.Duration(i) * time.Minute)}
		if err := s.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	jobs, err := s.ListJobs(ctx, 2, 0, "")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}

	paged, err := s.ListJobs(ctx, 2, 2, "")
	if err != nil {
		t.Fatalf("ListJobs with offset: %v", err)
	}
	if len(paged) != 1 {
		t.Errorf("len(paged) = %d, want 1", len(paged))
	}
}

func TestGetWithHistoryReturnsErrorForUnknownJob(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.GetWithHistory(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown job ID")
	}
}
