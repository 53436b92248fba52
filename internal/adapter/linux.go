// Package adapter implements the platform-specific half of the device
// lifecycle: discovering removable volumes, mounting them, and tearing
// mounts back down once a job has finished with them.
package adapter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
	"github.com/joshgermon/bksd/internal/uevent"
)

// LinuxConfig configures the Linux hot-plug adapter.
type LinuxConfig struct {
	MountBase string // root path for daemon-owned mount points
	AutoMount bool
	Logger    interfaces.Logger
}

// Linux watches the kernel's block-subsystem uevent broadcast and mounts
// recognised volumes under MountBase.
type Linux struct {
	cfg LinuxConfig

	ctx    context.Context
	cancel context.CancelFunc
	sock   *uevent.Socket

	mu         sync.Mutex
	mountedByUs map[string]string // uuid -> mount point
}

// New creates a Linux adapter. Call Start to begin watching.
func New(cfg LinuxConfig) *Linux {
	return &Linux{cfg: cfg, mountedByUs: make(map[string]string)}
}

// Start begins watching for attach/detach activity on a dedicated OS
// thread, because the netlink socket's receive loop must poll on a fixed
// timeout to notice cancellation and pinning keeps scheduling predictable
// under load. It forwards filtered, auto-mounted devices to sink until ctx
// is cancelled.
func (a *Linux) Start(ctx context.Context, sink chan<- interfaces.Event) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	sock, err := uevent.Open(uevent.NewTimeout(0, 500_000))
	if err != nil {
		return fmt.Errorf("adapter: open uevent socket: %w", err)
	}
	a.sock = sock

	started := make(chan error, 1)
	go a.watchLoop(sink, started)
	return <-started
}

func (a *Linux) watchLoop(sink chan<- interfaces.Event, started chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	started <- nil

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		ev, err := a.sock.Recv()
		if err != nil {
			// EAGAIN/EWOULDBLOCK from SO_RCVTIMEO elapsing; loop to
			// re-check cancellation.
			continue
		}
		if ev == nil {
			continue
		}

		switch ev.Action {
		case "add":
			hwEvent, ok := a.handleAdd(ev)
			if !ok {
				continue
			}
			select {
			case sink <- hwEvent:
			case <-a.ctx.Done():
				return
			}
		case "remove":
			if ev.FSUUID == "" {
				continue
			}
			a.mu.Lock()
			delete(a.mountedByUs, ev.FSUUID)
			a.mu.Unlock()
			select {
			case sink <- interfaces.Event{Kind: interfaces.EventDeviceRemoved, Device: model.BlockDevice{UUID: ev.FSUUID}}:
			case <-a.ctx.Done():
				return
			}
		}
	}
}

func (a *Linux) handleAdd(ev *uevent.Event) (interfaces.Event, bool) {
	if ev.DevType != "partition" && ev.FSType == "" {
		return interfaces.Event{}, false
	}
	fsKind, ok := model.RecognisedFilesystem(ev.FSType)
	if !ok {
		return interfaces.Event{}, false
	}
	if ev.DevName == "" {
		return interfaces.Event{}, false
	}

	// A recognised filesystem with no ID_FS_UUID (freshly formatted vfat
	// sticks commonly lack one) still gets a stable identity for this
	// attach, generated rather than skipped outright.
	volUUID := ev.FSUUID
	if volUUID == "" {
		volUUID = uuid.NewString()
	}

	label := ev.FSLabel
	if label == "" {
		label = volUUID
	}
	devPath := "/dev/" + ev.DevName

	mountPoint, err := a.ensureMounted(devPath, volUUID, fsKind)
	if err != nil {
		return interfaces.Event{}, false
	}

	dev := model.BlockDevice{
		UUID:       volUUID,
		Label:      label,
		DevicePath: devPath,
		MountPoint: mountPoint,
		SizeBytes:  deviceCapacity(ev.DevName),
		Filesystem: fsKind,
	}
	return interfaces.Event{Kind: interfaces.EventDeviceAdded, Device: dev}, true
}

// ensureMounted reuses an existing mount for devPath if one already
// exists in the system mount table, otherwise mounts it under
// MountBase/<uuid> when AutoMount is enabled.
func (a *Linux) ensureMounted(devPath, uuid string, fsKind model.FilesystemKind) (string, error) {
	if mp, ok := existingMountPoint(devPath); ok {
		return mp, nil
	}
	if !a.cfg.AutoMount {
		return "", fmt.Errorf("adapter: auto_mount disabled and %s not already mounted", devPath)
	}

	mountPoint := filepath.Join(a.cfg.MountBase, uuid)
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return "", fmt.Errorf("adapter: create mount point: %w", err)
	}

	flags := uintptr(unix.MS_NOEXEC | unix.MS_NOSUID)
	data := mountOptions(fsKind)
	if err := unix.Mount(devPath, mountPoint, string(fsKind), flags, data); err != nil {
		return "", fmt.Errorf("adapter: mount %s at %s: %w", devPath, mountPoint, err)
	}

	a.mu.Lock()
	a.mountedByUs[uuid] = mountPoint
	a.mu.Unlock()
	return mountPoint, nil
}

func mountOptions(fsKind model.FilesystemKind) string {
	switch fsKind {
	case model.FSVfat, model.FSExfat:
		return "utf8,uid=0,gid=0,umask=022"
	case model.FSNtfs:
		return "uid=0,gid=0,umask=022"
	default:
		return ""
	}
}

// existingMountPoint scans /proc/mounts for devPath.
func existingMountPoint(devPath string) (string, bool) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == devPath {
			return fields[1], true
		}
	}
	return "", false
}

// deviceCapacity reads the sector count from sysfs and converts to bytes.
func deviceCapacity(devName string) int64 {
	base := strings.TrimRightFunc(devName, func(r rune) bool { return r >= '0' && r <= '9' })
	sizePath := fmt.Sprintf("/sys/block/%s/size", devName)
	if base != devName {
		sizePath = fmt.Sprintf("/sys/block/%s/%s/size", base, devName)
	}
	raw, err := os.ReadFile(sizePath)
	if err != nil {
		return 0
	}
	sectors, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0
	}
	return sectors * 512
}

// Stop halts the watch loop.
func (a *Linux) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.sock != nil {
		return a.sock.Close()
	}
	return nil
}

// ListDevices enumerates currently mounted, recognised volumes by reading
// /proc/mounts and keeping /dev entries whose filesystem type field is in
// the recognised set. The returned devices carry no UUID, label or size.
func (a *Linux) ListDevices() ([]model.BlockDevice, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("adapter: list devices: %w", err)
	}
	defer f.Close()

	var devices []model.BlockDevice
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		fsKind, ok := model.RecognisedFilesystem(fields[2])
		if !ok {
			continue
		}
		devices = append(devices, model.BlockDevice{
			DevicePath: fields[0],
			MountPoint: fields[1],
			Filesystem: fsKind,
		})
	}
	return devices, nil
}

// CleanupDevice flushes the mounted filesystem and, if the daemon itself
// mounted it, performs a lazy unmount and removes the mount-point
// directory. A device mounted outside the daemon is left alone.
func (a *Linux) CleanupDevice(dev model.BlockDevice) error {
	if err := syncFilesystem(dev.MountPoint); err != nil {
		return fmt.Errorf("adapter: sync %s: %w", dev.MountPoint, err)
	}

	a.mu.Lock()
	_, mountedByUs := a.mountedByUs[dev.UUID]
	a.mu.Unlock()
	if !mountedByUs {
		return nil
	}

	if err := unix.Unmount(dev.MountPoint, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("adapter: unmount %s: %w", dev.MountPoint, err)
	}

	a.mu.Lock()
	delete(a.mountedByUs, dev.UUID)
	a.mu.Unlock()

	_ = os.Remove(dev.MountPoint)
	return nil
}

func syncFilesystem(mountPoint string) error {
	f, err := os.Open(mountPoint)
	if err != nil {
		return err
	}
	defer f.Close()
	return unix.Syncfs(int(f.Fd()))
}

var _ interfaces.Adapter = (*Linux)(nil)
