// Package progress holds the in-memory job-id -> latest TransferStatus
// map that status queries read from without touching the database.
package progress

import (
	"sync"

	"github.com/joshgermon/bksd/internal/model"
)

// Registry is a concurrent map from job ID to its most recently observed
// TransferStatus. The consumer updates it on every status; it is deleted
// once a job reaches a terminal state.
type Registry struct {
	mu    sync.RWMutex
	byJob map[string]model.TransferStatus
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byJob: make(map[string]model.TransferStatus)}
}

// Update records status as the latest for jobID.
func (r *Registry) Update(jobID string, status model.TransferStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byJob[jobID] = status
}

// Get returns the latest status for jobID, if any job with that ID is
// currently tracked.
func (r *Registry) Get(jobID string) (model.TransferStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byJob[jobID]
	return st, ok
}

// Delete removes jobID from the registry. Called once a job reaches a
// terminal state.
func (r *Registry) Delete(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byJob, jobID)
}

// ActiveCount returns the number of jobs currently tracked.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byJob)
}

// Snapshot returns a copy of every currently tracked job's status, keyed
// by job ID.
func (r *Registry) Snapshot() map[string]model.TransferStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.TransferStatus, len(r.byJob))
	for k, v := range r.byJob {
		out[k] = v
	}
	return out
}
