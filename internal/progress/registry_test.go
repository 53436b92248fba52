package progress

import (
	"testing"

	"github.com/joshgermon/bksd/internal/model"
)

func TestUpdateAndGet(t *testing.T) {
	r := New()
	if _, ok := r.Get("job-1"); ok {
		t.Fatal("expected no status for an untracked job")
	}

	r.Update("job-1", model.InProgress(100, 50, "a.txt", nil))
	st, ok := r.Get("job-1")
	if !ok {
		t.Fatal("expected a tracked status after Update")
	}
	if st.CurrentFile != "a.txt" {
		t.Errorf("CurrentFile = %q, want a.txt", st.CurrentFile)
	}
}

func TestDeleteRemovesJob(t *testing.T) {
	r := New()
	r.Update("job-1", model.Complete(100, 1))
	r.Delete("job-1")

	if _, ok := r.Get("job-1"); ok {
		t.Fatal("expected job to be gone after Delete")
	}
}

func TestActiveCount(t *testing.T) {
	r := New()
	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0 on an empty registry", r.ActiveCount())
	}

	r.Update("job-1", model.InProgress(100, 50, "a.txt", nil))
	r.Update("job-2", model.InProgress(100, 10, "b.txt", nil))
	if r.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", r.ActiveCount())
	}

	r.Delete("job-1")
	if r.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1 after Delete", r.ActiveCount())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Update("job-1", model.Complete(100, 1))

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}

	snap["job-2"] = model.Complete(1, 1)
	if _, ok := r.Get("job-2"); ok {
		t.Fatal("mutating the snapshot must not affect the registry")
	}
}
