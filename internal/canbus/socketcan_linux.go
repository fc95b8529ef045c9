//go:build linux

package canbus

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// SocketCAN writes raw frames on a Linux CAN interface.
type SocketCAN struct {
	mu sync.Mutex
	fd int
}

// OpenSocketCAN binds a raw CAN socket to iface (e.g. "can0").
func OpenSocketCAN(iface string) (*SocketCAN, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("canbus: interface %s: %w", iface, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %s: %w", iface, err)
	}
	return &SocketCAN{fd: fd}, nil
}

// WriteFrame implements FrameWriter.
func (s *SocketCAN) WriteFrame(f Frame) error {
	buf, err := MarshalSocketCAN(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fd < 0 {
		return ErrClosed
	}
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return fmt.Errorf("canbus: write: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("canbus: short write %d of %d bytes", n, len(buf))
	}
	return nil
}

// Close closes the socket.
func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return fmt.Errorf("canbus: close: %w", err)
	}
	return nil
}
