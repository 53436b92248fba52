package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

// Synthetic is an imperative adapter used by tests and simulation mode: it
// exposes InjectAdd/InjectRemove instead of watching real hardware, and
// optionally reads "add [uuid]" / "rm [uuid]" lines from an input stream
// to drive itself interactively.
type Synthetic struct {
	mu     sync.Mutex
	sink   chan<- interfaces.Event
	cancel context.CancelFunc
	input  io.Reader
}

// NewSynthetic creates a synthetic adapter. If input is non-nil, Start
// also spawns a goroutine parsing "add [uuid]" / "rm [uuid]" commands from
// it until ctx is cancelled or the stream reaches EOF.
func NewSynthetic(input io.Reader) *Synthetic {
	return &Synthetic{input: input}
}

func (s *Synthetic) Start(ctx context.Context, sink chan<- interfaces.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.sink = sink
	s.cancel = cancel
	s.mu.Unlock()

	if s.input != nil {
		go s.readCommands(ctx)
	}
	return nil
}

func (s *Synthetic) readCommands(ctx context.Context) {
	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "add":
			sizeGB := int64(1)
			if len(fields) >= 3 {
				if v, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
					sizeGB = v
				}
			}
			s.InjectAdd(fields[1], sizeGB)
		case "rm":
			s.InjectRemove(fields[1])
		}
	}
}

// InjectAdd pushes a synthetic DeviceAdded event with a fabricated
// BlockDevice, sized in gigabytes.
func (s *Synthetic) InjectAdd(uuid string, sizeGB int64) {
	dev := model.BlockDevice{
		UUID:       uuid,
		Label:      fmt.Sprintf("TEST_DEVICE_%s", uuid),
		DevicePath: fmt.Sprintf("/tmp/bksd-sim/%s", uuid),
		MountPoint: fmt.Sprintf("/tmp/bksd-sim/%s", uuid),
		SizeBytes:  sizeGB * 1024 * 1024 * 1024,
		Filesystem: model.FSExt4,
	}
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink <- interfaces.Event{Kind: interfaces.EventDeviceAdded, Device: dev}
	}
}

// InjectRemove pushes a synthetic DeviceRemoved event.
func (s *Synthetic) InjectRemove(uuid string) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink <- interfaces.Event{Kind: interfaces.EventDeviceRemoved, Device: model.BlockDevice{UUID: uuid}}
	}
}

func (s *Synthetic) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// ListDevices always returns an empty slice: the synthetic adapter has no
// real enumeration source.
func (s *Synthetic) ListDevices() ([]model.BlockDevice, error) {
	return nil, nil
}

// CleanupDevice is a no-op: there is no real mount to tear down.
func (s *Synthetic) CleanupDevice(model.BlockDevice) error {
	return nil
}

var _ interfaces.Adapter = (*Synthetic)(nil)
