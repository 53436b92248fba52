// Package simulated implements the synthetic transfer engine used by
// tests and simulation mode.
package simulated

import (
	"context"
	"time"

	"github.com/joshgermon/bksd/internal/constants"
	"github.com/joshgermon/bksd/internal/model"
)

// Engine produces a fixed-size synthetic transfer at a configured
// throughput, with no real I/O and no file hashes.
type Engine struct {
	// ThroughputBytesPerSec controls how fast the synthetic transfer
	// appears to progress. Defaults to 50 MiB/s.
	ThroughputBytesPerSec int64
}

// New creates a simulated engine at the default throughput.
func New() *Engine {
	return &Engine{ThroughputBytesPerSec: 50 * 1024 * 1024}
}

// Transfer emits in_progress with an ETA every 500ms until
// constants.SimulatedTransferSize bytes have been "copied", then returns a
// TransferResult with no file hashes.
func (e *Engine) Transfer(ctx context.Context, req model.TransferRequest, sink chan<- model.TransferStatus) (model.TransferResult, error) {
	const total = constants.SimulatedTransferSize
	throughput := e.ThroughputBytesPerSec
	if throughput <= 0 {
		throughput = 50 * 1024 * 1024
	}

	start := time.Now()
	ticker := time.NewTicker(constants.SimulatedTickInterval)
	defer ticker.Stop()

	var copied int64
	for copied < total {
		select {
		case <-ctx.Done():
			return model.TransferResult{}, ctx.Err()
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			copied = int64(elapsed * float64(throughput))
			if copied > total {
				copied = total
			}
			remaining := total - copied
			var eta *float64
			if throughput > 0 {
				secs := float64(remaining) / float64(throughput)
				eta = &secs
			}
			select {
			case sink <- model.InProgress(total, copied, "", eta):
			case <-ctx.Done():
				return model.TransferResult{}, ctx.Err()
			}
		}
	}

	return model.TransferResult{
		TotalBytes:   total,
		DurationSecs: time.Since(start).Seconds(),
		FileHashes:   nil,
	}, nil
}
