// Package bksd watches for removable-storage attach events and copies
// each device to a dated directory under a configured backup root.
package bksd

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/joshgermon/bksd/internal/adapter"
	"github.com/joshgermon/bksd/internal/config"
	"github.com/joshgermon/bksd/internal/constants"
	"github.com/joshgermon/bksd/internal/engine"
	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/logging"
	"github.com/joshgermon/bksd/internal/model"
	"github.com/joshgermon/bksd/internal/notify"
	"github.com/joshgermon/bksd/internal/notify/slack"
	"github.com/joshgermon/bksd/internal/ownership"
	"github.com/joshgermon/bksd/internal/progress"
	"github.com/joshgermon/bksd/internal/store"
	"github.com/joshgermon/bksd/internal/verifier"
)

// Daemon ties the adapter, transfer engine, verifier, store, and
// notifier together: every device attach flows into a job that a
// producer/consumer pair drives to a terminal state.
type Daemon struct {
	cfg      *config.Config
	adapter  interfaces.Adapter
	engine   interfaces.TransferEngine
	notifier interfaces.Notifier
	store    interfaces.Store
	logger   interfaces.Logger

	progress *progress.Registry
	metrics  *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
}

// Options carries dependencies a caller may want to override; anything
// left nil is built from cfg.
type Options struct {
	// Context for cancellation (if nil, uses context.Background()).
	Context context.Context

	// Logger for debug/info messages (if nil, a default logger is built
	// from cfg's Verbose/LogJSON settings).
	Logger interfaces.Logger

	// Adapter overrides the device source the config would otherwise
	// select (real Linux adapter, or synthetic under Simulation). Tests
	// substitute a MockAdapter here.
	Adapter interfaces.Adapter

	// Engine overrides the transfer engine the config's TransferEngine
	// would otherwise select.
	Engine interfaces.TransferEngine

	// Notifier overrides the channel built from cfg.SlackWebhookURL.
	Notifier interfaces.Notifier

	// Store overrides the SQLite store opened at cfg.StorePath.
	Store interfaces.Store
}

// New builds a Daemon from cfg, constructing its adapter/engine/store/
// notifier unless options supplies overrides. Call Run to start it.
func New(cfg *config.Config, options *Options) (*Daemon, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError("new_daemon", err)
	}
	if options == nil {
		options = &Options{}
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.NewLogger(cfg.LogConfig())
	}

	adp := options.Adapter
	if adp == nil {
		if cfg.Simulation {
			adp = adapter.NewSynthetic(nil)
		} else {
			adp = adapter.New(adapter.LinuxConfig{MountBase: cfg.MountBase, AutoMount: true, Logger: logger})
		}
	}

	eng := options.Engine
	if eng == nil {
		built, err := engine.New(cfg.TransferEngine)
		if err != nil {
			return nil, WrapError("new_daemon", err)
		}
		eng = built
	}

	notifier := options.Notifier
	if notifier == nil {
		if cfg.SlackWebhookURL != "" {
			notifier = notify.Logging{Next: slack.New(cfg.SlackWebhookURL), Logger: logger}
		} else {
			notifier = notify.NoOp{}
		}
	}

	st := options.Store
	if st == nil {
		opened, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, WrapError("new_daemon", err)
		}
		st = opened
	}

	return &Daemon{
		cfg:      cfg,
		adapter:  adp,
		engine:   eng,
		notifier: notifier,
		store:    st,
		logger:   logger,
		progress: progress.New(),
		metrics:  NewMetrics(),
	}, nil
}

// Run starts the adapter and blocks, dispatching attach/detach events
// until ctx is cancelled or Stop is called. It returns nil on a clean
// shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = true

	events := make(chan interfaces.Event, constants.EventChannelDepth)
	if err := d.adapter.Start(d.ctx, events); err != nil {
		d.started = false
		return WrapError("adapter_start", err)
	}

	for {
		select {
		case <-d.ctx.Done():
			d.wg.Wait()
			return nil
		case ev, ok := <-events:
			if !ok {
				d.wg.Wait()
				return nil
			}
			d.handleEvent(ev)
		}
	}
}

// Stop cancels the daemon's context and waits for in-flight jobs'
// consumers to drain, then closes the store. Safe to call more than
// once.
func (d *Daemon) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	_ = d.adapter.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Metrics returns the daemon's metrics instance.
func (d *Daemon) Metrics() *Metrics { return d.metrics }

// Progress returns the daemon's in-memory progress registry.
func (d *Daemon) Progress() *progress.Registry { return d.progress }

func (d *Daemon) handleEvent(ev interfaces.Event) {
	switch ev.Kind {
	case interfaces.EventDeviceAdded:
		d.metrics.RecordDeviceAttached()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleAttach(ev.Device)
		}()
	case interfaces.EventDeviceRemoved:
		d.metrics.RecordDeviceDetached()
		d.logger.Printf("device removed: %s", ev.Device.DisplayLabel())
	}
}

// handleAttach implements the per-attach protocol: create a job,
// announce it, run the transfer on a producer goroutine while a
// consumer goroutine drains its progress into the store and registry,
// then clean up the device once the job reaches a terminal state.
func (d *Daemon) handleAttach(dev model.BlockDevice) {
	destination := d.destinationFor(dev)
	job := model.Job{
		ID:          xid.New().String(),
		DriveID:     dev.UUID,
		Destination: destination,
		CreatedAt:   time.Now(),
	}

	if err := d.store.CreateJob(d.ctx, job); err != nil {
		d.logger.Printf("job create failed for drive %s: %v", dev.UUID, err)
		return
	}
	d.metrics.RecordJobStarted()
	d.progress.Update(job.ID, model.TransferStatus{Kind: model.KindReady})

	owner, hasOwner := ownership.Resolve(d.cfg.BackupDirectory)
	req := model.TransferRequest{
		JobID:       job.ID,
		Source:      dev.MountPoint,
		Destination: destination,
	}
	if hasOwner {
		req.OwnerUser, req.OwnerGroup = owner.User, owner.Group
	}

	d.notifyAsync(model.JobEvent{
		Kind: model.EventStarted, JobID: job.ID, DeviceLabel: dev.DisplayLabel(),
		Source: req.Source, Destination: req.Destination,
	})

	progressCh := make(chan model.TransferStatus, constants.ProgressChannelDepth)

	var g errgroup.Group
	g.Go(func() error {
		d.consume(job, dev, progressCh)
		return nil
	})
	g.Go(func() error {
		d.produce(job, dev, req, progressCh)
		return nil
	})
	_ = g.Wait() // neither goroutine returns an error; the job's own
	// terminal status, not a Go error, carries success/failure.
}

// produce runs the transfer engine, optionally verifies the result, and
// closes progressCh when done. On success it emits the terminal status
// itself; on an engine error it emits nothing and relies on the failed
// status the engine sent.
func (d *Daemon) produce(job model.Job, dev model.BlockDevice, req model.TransferRequest, progressCh chan<- model.TransferStatus) {
	defer close(progressCh)

	result, err := d.engine.Transfer(d.ctx, req, progressCh)
	if err != nil {
		// The engine already sent a failed status before returning, per
		// TransferEngine's contract. A cancelled shutdown is the one
		// exception: the job is simply abandoned mid-copy, unadvertised
		// as complete, rather than marked failed.
		return
	}

	progressCh <- model.TransferStatus{Kind: model.KindCopyComplete}

	if !d.cfg.VerifyTransfers || d.cfg.Simulation || result.FileHashes == nil {
		progressCh <- model.Complete(result.TotalBytes, result.DurationSecs)
		return
	}

	progressCh <- model.TransferStatus{Kind: model.KindVerifying, VerifyTotal: len(result.FileHashes)}
	if _, err := verifier.VerifyFromHashes(req.Destination, result.FileHashes); err != nil {
		d.metrics.RecordVerificationFailure()
		progressCh <- model.Failed("%v", err)
		return
	}
	progressCh <- model.Complete(result.TotalBytes, result.DurationSecs)
}

// consume drains progressCh into the progress registry and the store's
// append-only status log, fires a terminal notification, and cleans up
// the device once the job reaches complete or failed. Only copy_complete
// and the terminal kinds are persisted to the status log; in_progress and
// verifying only update the in-memory registry (and, for in_progress, an
// optionally throttled log line) per §4.2's scoping of consumer appends.
func (d *Daemon) consume(job model.Job, dev model.BlockDevice, progressCh <-chan model.TransferStatus) {
	var logGate progress.LogGate

	for status := range progressCh {
		d.progress.Update(job.ID, status)

		switch status.Kind {
		case model.KindInProgress:
			if logGate.ShouldLog(constants.ProgressLogInterval) {
				d.logger.Printf("job %s: %d%% (%s)", job.ID, status.Percentage, status.CurrentFile)
			}
			continue
		case model.KindVerifying:
			continue
		}

		entry := statusEntry(job.ID, status)
		if err := d.store.AppendStatus(d.ctx, entry); err != nil {
			d.logger.Printf("status append failed for job %s: %v", job.ID, err)
		}

		if !status.Kind.Terminal() {
			continue
		}

		switch status.Kind {
		case model.KindComplete:
			d.metrics.RecordJobCompleted(status.TotalBytes, status.DurationSecs)
			d.notifyAsync(model.JobEvent{
				Kind: model.EventCompleted, JobID: job.ID, DeviceLabel: dev.DisplayLabel(),
				TotalBytes: status.TotalBytes, DurationSecs: status.DurationSecs,
			})
		case model.KindFailed:
			d.metrics.RecordJobFailed(status.DurationSecs)
			d.notifyAsync(model.JobEvent{
				Kind: model.EventFailed, JobID: job.ID, DeviceLabel: dev.DisplayLabel(),
				Message: status.Message,
			})
		}

		if err := d.adapter.CleanupDevice(dev); err != nil {
			d.logger.Printf("cleanup failed for device %s: %v", dev.UUID, err)
		}
		d.progress.Delete(job.ID)
	}
}

// notifyAsync dispatches a notification without blocking the caller; a
// delivery failure is recorded in metrics but never surfaces to the job.
func (d *Daemon) notifyAsync(event model.JobEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.notifier.Notify(d.ctx, event)
		d.metrics.RecordNotification(err == nil)
	}()
}

func (d *Daemon) destinationFor(dev model.BlockDevice) string {
	stamp := time.Now().Format("2006-01-02_T1504_05")
	return filepath.Join(d.cfg.BackupDirectory, dev.DisplayLabel(), stamp)
}

func statusEntry(jobID string, status model.TransferStatus) model.JobStatusEntry {
	entry := model.JobStatusEntry{JobID: jobID, Status: model.JobStatusTag(status.Kind), CreatedAt: time.Now()}
	switch status.Kind {
	case model.KindFailed:
		entry.Description = status.Message
	case model.KindComplete:
		totalBytes := status.TotalBytes
		entry.TotalBytes = &totalBytes
		durationSecs := status.DurationSecs
		entry.DurationSecs = &durationSecs
	case model.KindInProgress:
		entry.Description = status.CurrentFile
	}
	return entry
}
