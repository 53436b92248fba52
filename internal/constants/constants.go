// Package constants holds tuning knobs shared across the daemon's internal
// packages: channel depths, poll intervals, and copy chunk sizing.
package constants

import "time"

// Timing constants for the hot-plug subscription and mount lifecycle.
//
// The device lifecycle follows a strict order:
//  1. A uevent arrives on the kobject netlink socket for a block partition.
//  2. The adapter filters it, optionally mounts it, and forwards
//     DeviceAdded to the orchestrator.
//  3. The orchestrator's consumer eventually calls CleanupDevice, which
//     flushes and lazy-unmounts only what the daemon itself mounted.
const (
	// SubscriptionPollTimeout bounds how long the netlink read-loop blocks
	// on SO_RCVTIMEO before re-checking its cancellation token.
	SubscriptionPollTimeout = 500 * time.Millisecond

	// MountRetryDelay is a pause length for mount-point readiness checks.
	// The adapter performs no such checks and does not read it: an
	// existing mount is reused as found in /proc/mounts.
	MountRetryDelay = 50 * time.Millisecond
)

// Channel depths. Bounded channels are how the system applies backpressure:
// a stalled consumer slows the producer rather than growing memory without
// bound.
const (
	// EventChannelDepth bounds the adapter -> orchestrator event channel.
	EventChannelDepth = 32

	// ProgressChannelDepth bounds the per-job producer -> consumer progress
	// channel.
	ProgressChannelDepth = 100
)

// Copy engine tuning.
const (
	// CopyChunkSize is the buffer size used for streaming file reads/writes
	// and inline hashing in the native copy engine.
	CopyChunkSize = 128 * 1024

	// ProgressLogThreshold is the minimum number of bytes copied between
	// the native engine's in_progress emissions. The check runs after each
	// whole file is copied, so no status is emitted partway through a file.
	ProgressLogThreshold = 1024 * 1024

	// ProgressLogInterval bounds how often the orchestrator's consumer
	// prints a progress line for a single job, independent of how often
	// the engine itself emits in_progress statuses.
	ProgressLogInterval = 1 * time.Second
)

// Simulated engine tuning.
const (
	// SimulatedTransferSize is the synthetic payload size used by the
	// simulated transfer engine.
	SimulatedTransferSize = 500 * 1024 * 1024

	// SimulatedTickInterval is how often the simulated engine emits
	// progress.
	SimulatedTickInterval = 500 * time.Millisecond
)

// Reporting limits.
const (
	// MaxReportedErrors bounds how many per-file errors or hash mismatches
	// are included in a failure message.
	MaxReportedErrors = 10
)
