package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/joshgermon/bksd/internal/constants"
	"github.com/joshgermon/bksd/internal/model"
)

func TestTransferReachesTotalBytes(t *testing.T) {
	// A throughput that clears the whole payload inside one tick keeps
	// this test to roughly one SimulatedTickInterval.
	eng := &Engine{ThroughputBytesPerSec: constants.SimulatedTransferSize * 10}

	sink := make(chan model.TransferStatus, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := eng.Transfer(ctx, model.TransferRequest{}, sink)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if result.TotalBytes != constants.SimulatedTransferSize {
		t.Errorf("TotalBytes = %d, want %d", result.TotalBytes, constants.SimulatedTransferSize)
	}
	if result.FileHashes != nil {
		t.Error("expected nil FileHashes from the simulated engine")
	}
}

func TestTransferEmitsInProgress(t *testing.T) {
	eng := &Engine{ThroughputBytesPerSec: constants.SimulatedTransferSize * 10}
	sink := make(chan model.TransferStatus, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := eng.Transfer(ctx, model.TransferRequest{}, sink); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	close(sink)

	var sawInProgress bool
	for st := range sink {
		if st.Kind == model.KindInProgress {
			sawInProgress = true
		}
	}
	if !sawInProgress {
		t.Error("expected at least one in_progress status")
	}
}

func TestTransferAbortsOnCancellation(t *testing.T) {
	eng := New() // default throughput, payload won't finish before cancellation
	sink := make(chan model.TransferStatus, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Transfer(ctx, model.TransferRequest{}, sink); err == nil {
		t.Fatal("expected Transfer to return an error for a pre-cancelled context")
	}
}

func TestNewDefaultsThroughput(t *testing.T) {
	eng := New()
	if eng.ThroughputBytesPerSec <= 0 {
		t.Error("expected a positive default throughput")
	}
}
