// Package interfaces provides internal interface definitions for bksd.
// These are separate from the root package's public API to avoid
// circular imports between bksd and its internal adapter/engine/store/
// notify packages: every type referenced here lives in internal/model,
// which has no dependencies of its own.
package interfaces

import (
	"context"

	"github.com/joshgermon/bksd/internal/model"
)

// Event is what an Adapter pushes to the orchestrator as devices come and
// go.
type Event struct {
	Kind   EventKind
	Device model.BlockDevice
}

// EventKind discriminates an adapter Event.
type EventKind int

const (
	EventDeviceAdded EventKind = iota
	EventDeviceRemoved
)

// Adapter owns the platform-specific half of the device lifecycle:
// discovering removable volumes, mounting them, and tearing mounts back
// down once a job has finished with them.
type Adapter interface {
	// Start begins watching for attach/detach activity and streams Events
	// to sink until ctx is cancelled or Stop is called. It must not block
	// past ctx's cancellation.
	Start(ctx context.Context, sink chan<- Event) error

	// Stop halts the watch loop started by Start. It is safe to call more
	// than once.
	Stop() error

	// ListDevices returns the devices currently attached and recognised,
	// for status queries.
	ListDevices() ([]model.BlockDevice, error)

	// CleanupDevice flushes and unmounts a device the daemon itself
	// mounted. It is a no-op for devices mounted outside the daemon.
	CleanupDevice(dev model.BlockDevice) error
}

// TransferEngine performs the actual data movement for a job, streaming
// in_progress TransferStatus values to sink as it proceeds. On failure it
// sends a failed status before returning the error that caused it; once
// ctx is cancelled that failed status may not be sent. On
// success it returns a TransferResult and a nil error without sending a
// terminal status itself; the caller derives copy_complete/verifying/
// complete from the result (and an optional verification pass) since only
// the caller knows whether verification is enabled. Transfer must return
// promptly once ctx is cancelled.
type TransferEngine interface {
	Transfer(ctx context.Context, req model.TransferRequest, sink chan<- model.TransferStatus) (model.TransferResult, error)
}

// Notifier dispatches a JobEvent to whatever external channel is
// configured (chat webhook, none). Notify must not block the caller for
// longer than the notifier's own internal timeout, and a delivery failure
// must never propagate to the caller as a job failure.
type Notifier interface {
	Notify(ctx context.Context, event model.JobEvent) error
}

// Store is the persistence boundary for targets, jobs, and their
// append-only status history.
type Store interface {
	// CreateJob records a new job row and its initial ready status entry.
	CreateJob(ctx context.Context, job model.Job) error

	// AppendStatus appends one entry to a job's status log. Implementations
	// must make this durable before returning.
	AppendStatus(ctx context.Context, entry model.JobStatusEntry) error

	// ListJobs returns jobs ordered newest first, paginated by limit/offset
	// and optionally filtered to a single current status tag.
	ListJobs(ctx context.Context, limit, offset int, status model.JobStatusTag) ([]model.Job, error)

	// GetWithHistory returns a job and its full status log, oldest first.
	GetWithHistory(ctx context.Context, jobID string) (model.Job, []model.JobStatusEntry, error)

	// Close releases any underlying resources (database handle, etc).
	Close() error
}

// Logger is the minimal logging contract internal packages accept, so
// that a caller embedding bksd can supply any compatible logger without
// importing internal/logging directly.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
}
