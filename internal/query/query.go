// Package query defines the read-only contract types an external
// front end (RPC transport, web dashboard, TUI, CLI) would render from.
// The transports themselves are out of scope; this package only shapes
// the data the orchestrator and store expose to them.
package query

import (
	"context"
	"time"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
	"github.com/joshgermon/bksd/internal/progress"
)

// DeviceSummary describes one attached device for a status listing.
type DeviceSummary struct {
	UUID       string
	Label      string
	MountPoint string
	SizeBytes  int64
	Filesystem string
}

// DaemonStatus is a point-in-time snapshot of daemon state.
type DaemonStatus struct {
	Version        string
	UptimeSeconds  float64
	Simulation     bool
	ActiveJobCount int
	Devices        []DeviceSummary
	ActiveJobs     map[string]model.TransferStatus
	GeneratedAt    time.Time
}

// JobSummary is one row of a job listing.
type JobSummary struct {
	ID          string
	DriveID     string
	Destination string
	Status      model.JobStatusTag
	CreatedAt   time.Time
}

// JobDetail is a single job with its full append-only status history.
type JobDetail struct {
	Job     JobSummary
	History []model.JobStatusEntry
}

// Service answers read-only queries against the adapter, progress
// registry, and store, for external front ends to render.
type Service struct {
	Adapter    interfaces.Adapter
	Progress   *progress.Registry
	Store      interfaces.Store
	Version    string // daemon build version, surfaced verbatim
	Simulation bool   // whether the daemon is running against the synthetic adapter
	StartedAt  time.Time
}

// Status builds a DaemonStatus from the live adapter device list and the
// in-memory progress registry.
func (s *Service) Status() (DaemonStatus, error) {
	devices, err := s.Adapter.ListDevices()
	if err != nil {
		return DaemonStatus{}, err
	}
	summaries := make([]DeviceSummary, 0, len(devices))
	for _, d := range devices {
		summaries = append(summaries, DeviceSummary{
			UUID:       d.UUID,
			Label:      d.DisplayLabel(),
			MountPoint: d.MountPoint,
			SizeBytes:  d.SizeBytes,
			Filesystem: string(d.Filesystem),
		})
	}
	var uptime float64
	if !s.StartedAt.IsZero() {
		uptime = time.Since(s.StartedAt).Seconds()
	}
	return DaemonStatus{
		Version:        s.Version,
		UptimeSeconds:  uptime,
		Simulation:     s.Simulation,
		ActiveJobCount: s.Progress.ActiveCount(),
		Devices:        summaries,
		ActiveJobs:     s.Progress.Snapshot(),
		GeneratedAt:    time.Now(),
	}, nil
}

// ListJobs delegates to the store, newest first, paginated by
// limit/offset and optionally filtered to one current status.
func (s *Service) ListJobs(ctx context.Context, limit, offset int, status model.JobStatusTag) ([]JobSummary, error) {
	jobs, err := s.Store.ListJobs(ctx, limit, offset, status)
	if err != nil {
		return nil, err
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		_, history, err := s.Store.GetWithHistory(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, JobSummary{
			ID:          j.ID,
			DriveID:     j.DriveID,
			Destination: j.Destination,
			Status:      latestStatus(history),
			CreatedAt:   j.CreatedAt,
		})
	}
	return out, nil
}

// JobDetail returns a job and its full status history.
func (s *Service) JobDetail(ctx context.Context, jobID string) (JobDetail, error) {
	job, history, err := s.Store.GetWithHistory(ctx, jobID)
	if err != nil {
		return JobDetail{}, err
	}
	return JobDetail{
		Job: JobSummary{
			ID:          job.ID,
			DriveID:     job.DriveID,
			Destination: job.Destination,
			Status:      latestStatus(history),
			CreatedAt:   job.CreatedAt,
		},
		History: history,
	}, nil
}

func latestStatus(history []model.JobStatusEntry) model.JobStatusTag {
	if len(history) == 0 {
		return model.StatusReady
	}
	return history[len(history)-1].Status
}
