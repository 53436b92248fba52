// Package model holds the data types shared between bksd's public API and
// its internal adapter/engine/store/notify packages. It has no internal
// dependencies of its own so that internal/interfaces, internal/adapter,
// internal/engine, internal/store, and internal/notify can all depend on it
// without creating an import cycle back through the root package.
package model

import (
	"fmt"
	"time"
)

// FilesystemKind is the closed set of filesystem kinds the daemon
// recognises on an attached volume.
type FilesystemKind string

const (
	FSExt4  FilesystemKind = "ext4"
	FSVfat  FilesystemKind = "vfat"
	FSExfat FilesystemKind = "exfat"
	FSNtfs  FilesystemKind = "ntfs"
	FSBtrfs FilesystemKind = "btrfs"
)

// RecognisedFilesystem reports whether kind is one of the closed set the
// daemon will mount and back up.
func RecognisedFilesystem(kind string) (FilesystemKind, bool) {
	switch FilesystemKind(kind) {
	case FSExt4, FSVfat, FSExfat, FSNtfs, FSBtrfs:
		return FilesystemKind(kind), true
	default:
		return "", false
	}
}

// BlockDevice describes an attached filesystem. MountPoint is populated
// only after a successful mount.
type BlockDevice struct {
	UUID       string // stable volume identifier
	Label      string // human label; defaults to UUID when absent
	DevicePath string // e.g. /dev/sdb1
	MountPoint string // empty until mounted
	SizeBytes  int64
	Filesystem FilesystemKind
}

// DisplayLabel returns Label, falling back to UUID when Label is empty.
func (d BlockDevice) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.UUID
}

// JobStatusTag is the closed set of status tags a JobStatusEntry may carry.
type JobStatusTag string

const (
	StatusReady        JobStatusTag = "ready"
	StatusInProgress   JobStatusTag = "in_progress"
	StatusCopyComplete JobStatusTag = "copy_complete"
	StatusVerifying    JobStatusTag = "verifying"
	StatusComplete     JobStatusTag = "complete"
	StatusFailed       JobStatusTag = "failed"
)

// Terminal reports whether the tag is one of the two terminal states.
func (t JobStatusTag) Terminal() bool {
	return t == StatusComplete || t == StatusFailed
}

// Job is one attach episode's unit of work.
type Job struct {
	ID          string // time-ordered unique identifier
	DriveID     string // target BlockDevice.UUID
	Destination string
	CreatedAt   time.Time
}

// JobStatusEntry is one append-only row in a job's status log.
type JobStatusEntry struct {
	ID            int64
	JobID         string
	Status        JobStatusTag
	Description   string
	TotalBytes    *int64
	DurationSecs  *float64
	CreatedAt     time.Time
}

// TransferRequest is the immutable input to a transfer engine.
type TransferRequest struct {
	JobID       string
	Source      string
	Destination string
	OwnerUser   string // empty when ownership could not be resolved
	OwnerGroup  string
}

// FileHash is one recorded content hash captured during copy.
type FileHash struct {
	RelativePath string
	Digest       [32]byte // BLAKE3
	Size         int64
}

// TransferResult is the output of a successful transfer.
type TransferResult struct {
	TotalBytes   int64
	DurationSecs float64
	FileHashes   []FileHash // nil when the engine cannot supply hashes
}

// StatusKind is the tag discriminating which fields of TransferStatus are
// populated.
type StatusKind string

const (
	KindReady        StatusKind = "ready"
	KindInProgress   StatusKind = "in_progress"
	KindCopyComplete StatusKind = "copy_complete"
	KindVerifying    StatusKind = "verifying"
	KindComplete     StatusKind = "complete"
	KindFailed       StatusKind = "failed"
)

// Terminal reports whether the kind is complete or failed.
func (k StatusKind) Terminal() bool {
	return k == KindComplete || k == KindFailed
}

// TransferStatus is the tagged-union progress value streamed from a
// transfer engine to the orchestrator's consumer. Only the fields relevant
// to Kind are meaningful.
type TransferStatus struct {
	Kind StatusKind

	// in_progress
	TotalBytes  int64
	BytesCopied int64
	CurrentFile string
	Percentage  int
	ETASeconds  *float64

	// verifying
	VerifyCurrent int
	VerifyTotal   int

	// complete
	DurationSecs float64

	// failed
	Message string
}

// InProgress constructs a clamped in_progress status.
func InProgress(totalBytes, bytesCopied int64, currentFile string, eta *float64) TransferStatus {
	pct := 100
	if totalBytes > 0 {
		pct = int(100 * bytesCopied / totalBytes)
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}
	return TransferStatus{
		Kind:        KindInProgress,
		TotalBytes:  totalBytes,
		BytesCopied: bytesCopied,
		CurrentFile: currentFile,
		Percentage:  pct,
		ETASeconds:  eta,
	}
}

// Failed constructs a terminal failed status.
func Failed(format string, args ...any) TransferStatus {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return TransferStatus{Kind: KindFailed, Message: msg}
}

// Complete constructs a terminal complete status.
func Complete(totalBytes int64, durationSecs float64) TransferStatus {
	return TransferStatus{Kind: KindComplete, TotalBytes: totalBytes, DurationSecs: durationSecs}
}

// EventKind discriminates a JobEvent.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// JobEvent carries enough context to render a notification without a
// database read.
type JobEvent struct {
	Kind         EventKind
	JobID        string
	DeviceLabel  string
	Source       string
	Destination  string
	TotalBytes   int64
	DurationSecs float64
	Message      string // populated for EventFailed
}
