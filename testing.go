package bksd

import (
	"context"
	"sort"
	"sync"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

// MockAdapter provides a mock implementation of interfaces.Adapter for
// testing the orchestrator without touching netlink or the mount table.
// Tests drive device arrival/departure via Emit; it tracks call counts for
// verification.
type MockAdapter struct {
	mu sync.Mutex

	devices      []model.BlockDevice
	sink         chan<- interfaces.Event
	started      bool
	startCalls   int
	stopCalls    int
	cleanupCalls int
	cleanedUp    []model.BlockDevice
	cleanupErr   error
}

// NewMockAdapter creates a mock adapter that reports devices as already
// attached.
func NewMockAdapter(devices ...model.BlockDevice) *MockAdapter {
	return &MockAdapter{devices: devices}
}

func (m *MockAdapter) Start(ctx context.Context, sink chan<- interfaces.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	m.started = true
	m.sink = sink
	return nil
}

func (m *MockAdapter) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.started = false
	return nil
}

func (m *MockAdapter) ListDevices() ([]model.BlockDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BlockDevice, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

func (m *MockAdapter) CleanupDevice(dev model.BlockDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupCalls++
	m.cleanedUp = append(m.cleanedUp, dev)
	return m.cleanupErr
}

// Emit pushes an event to whatever sink Start was given. It blocks if the
// caller hasn't started the adapter yet; tests should call Start first.
func (m *MockAdapter) Emit(kind interfaces.EventKind, dev model.BlockDevice) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	sink <- interfaces.Event{Kind: kind, Device: dev}
}

// SetCleanupError configures the error CleanupDevice returns.
func (m *MockAdapter) SetCleanupError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupErr = err
}

// CallCounts returns how many times each method has been invoked.
func (m *MockAdapter) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{"start": m.startCalls, "stop": m.stopCalls, "cleanup": m.cleanupCalls}
}

// CleanedUp returns the devices passed to CleanupDevice, in call order.
func (m *MockAdapter) CleanedUp() []model.BlockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BlockDevice, len(m.cleanedUp))
	copy(out, m.cleanedUp)
	return out
}

// Reset clears call counts and recorded state.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls, m.stopCalls, m.cleanupCalls = 0, 0, 0
	m.cleanedUp = nil
}

// MockEngine is a scripted interfaces.TransferEngine: it replays a fixed
// sequence of statuses, then returns a fixed result/error.
type MockEngine struct {
	mu sync.Mutex

	Statuses     []model.TransferStatus
	Result       model.TransferResult
	Err          error
	transferCalls int
	lastRequest   model.TransferRequest
}

func (m *MockEngine) Transfer(ctx context.Context, req model.TransferRequest, sink chan<- model.TransferStatus) (model.TransferResult, error) {
	m.mu.Lock()
	m.transferCalls++
	m.lastRequest = req
	statuses := m.Statuses
	m.mu.Unlock()

	for _, st := range statuses {
		select {
		case sink <- st:
		case <-ctx.Done():
			return model.TransferResult{}, ctx.Err()
		}
	}
	return m.Result, m.Err
}

// CallCount returns how many times Transfer was invoked.
func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferCalls
}

// LastRequest returns the most recent TransferRequest passed to Transfer.
func (m *MockEngine) LastRequest() model.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// MockNotifier records every event it is asked to deliver.
type MockNotifier struct {
	mu     sync.Mutex
	events []model.JobEvent
	err    error
}

func (m *MockNotifier) Notify(ctx context.Context, event model.JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

// SetError configures the error Notify returns.
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns the events recorded so far, in delivery order.
func (m *MockNotifier) Events() []model.JobEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.JobEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Reset clears recorded events.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// MockStore is an in-memory interfaces.Store for tests that exercise the
// orchestrator without a real SQLite file.
type MockStore struct {
	mu      sync.Mutex
	jobs    map[string]model.Job
	history map[string][]model.JobStatusEntry
	closed  bool
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		jobs:    make(map[string]model.Job),
		history: make(map[string][]model.JobStatusEntry),
	}
}

func (s *MockStore) CreateJob(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.history[job.ID] = append(s.history[job.ID], model.JobStatusEntry{
		JobID: job.ID, Status: model.StatusReady, CreatedAt: job.CreatedAt,
	})
	return nil
}

func (s *MockStore) AppendStatus(ctx context.Context, entry model.JobStatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.history[entry.JobID]) + 1)
	s.history[entry.JobID] = append(s.history[entry.JobID], entry)
	return nil
}

func (s *MockStore) ListJobs(ctx context.Context, limit, offset int, status model.JobStatusTag) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Job
	for _, j := range s.jobs {
		if status != "" {
			hist := s.history[j.ID]
			if len(hist) == 0 || hist[len(hist)-1].Status != status {
				continue
			}
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MockStore) GetWithHistory(ctx context.Context, jobID string) (model.Job, []model.JobStatusEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return model.Job{}, nil, NewJobError("get_with_history", jobID, ErrCodeStoreError, "job not found")
	}
	out := make([]model.JobStatusEntry, len(s.history[jobID]))
	copy(out, s.history[jobID])
	return job, out, nil
}

func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *MockStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Compile-time interface checks.
var (
	_ interfaces.Adapter        = (*MockAdapter)(nil)
	_ interfaces.TransferEngine = (*MockEngine)(nil)
	_ interfaces.Notifier       = (*MockNotifier)(nil)
	_ interfaces.Store          = (*MockStore)(nil)
)
