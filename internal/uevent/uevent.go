// Package uevent subscribes to the kernel's kobject-uevent netlink
// broadcast and parses block-subsystem add/remove events. No third-party
// consumer for this protocol exists in the ecosystem libraries otherwise
// used by this daemon (mdlayher/netlink and vishvananda/netlink speak
// generic-netlink and rtnetlink respectively, not the kobject broadcast
// group), so this package talks to the raw socket directly via
// golang.org/x/sys/unix, the same way the rest of the daemon already
// depends on x/sys for syscalls outside Go's standard library coverage.
package uevent

import (
	"bytes"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	netlinkKobjectUevent = 15 // NETLINK_KOBJECT_UEVENT
	groupsAll            = 1  // single multicast group, bit 0
)

// Socket wraps a raw kobject-uevent netlink socket.
type Socket struct {
	fd int
}

// Open binds a new kobject-uevent socket with a receive timeout so
// callers can poll for cancellation between reads.
func Open(recvTimeout unixTimeval) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, netlinkKobjectUevent)
	if err != nil {
		return nil, err
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: groupsAll}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	tv := unix.Timeval{Sec: recvTimeout.Sec, Usec: recvTimeout.Usec}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// unixTimeval avoids a direct unix.Timeval in Open's signature so callers
// outside this package don't need to import x/sys/unix themselves.
type unixTimeval struct {
	Sec  int64
	Usec int64
}

// NewTimeout builds a unixTimeval from whole and fractional seconds.
func NewTimeout(sec, usec int64) unixTimeval {
	return unixTimeval{Sec: sec, Usec: usec}
}

// Close releases the socket.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Event is a parsed kobject-uevent message, filtered to the properties the
// adapter cares about.
type Event struct {
	Action     string // "add" or "remove"
	DevType    string // DEVTYPE property, e.g. "partition"
	Subsystem  string
	DevName    string // kernel device name, e.g. "sdb1"
	FSType     string // ID_FS_TYPE, empty if absent
	FSUUID     string // ID_FS_UUID, empty if absent
	FSLabel    string // ID_FS_LABEL, empty if absent
}

// ErrTimeout is returned by Recv when SO_RCVTIMEO elapses with nothing
// available, so the adapter's loop can re-check its cancellation token.
var ErrTimeout = unix.EAGAIN

// Recv blocks for up to the configured receive timeout and returns the
// next block-subsystem event, or nil if the datagram wasn't a block event
// or wasn't parseable.
func (s *Socket) Recv() (*Event, error) {
	buf := make([]byte, 8192)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, err
	}
	return parse(buf[:n]), nil
}

// parse decodes a kobject-uevent payload. The wire format is a header
// line ("add@/devices/...") followed by NUL-separated KEY=VALUE pairs.
func parse(payload []byte) *Event {
	fields := bytes.Split(payload, []byte{0})
	if len(fields) == 0 {
		return nil
	}
	header := string(fields[0])
	at := strings.IndexByte(header, '@')
	if at < 0 {
		return nil
	}
	ev := &Event{Action: header[:at]}

	for _, f := range fields[1:] {
		kv := string(f)
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = val
		case "DEVTYPE":
			ev.DevType = val
		case "DEVNAME":
			ev.DevName = val
		case "ID_FS_TYPE":
			ev.FSType = val
		case "ID_FS_UUID":
			ev.FSUUID = val
		case "ID_FS_LABEL":
			ev.FSLabel = val
		}
	}

	if ev.Subsystem != "block" {
		return nil
	}
	return ev
}
