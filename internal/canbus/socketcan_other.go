//go:build !linux

package canbus

import "errors"

// SocketCAN is not available on this platform.
type SocketCAN struct{}

// OpenSocketCAN always fails outside Linux.
func OpenSocketCAN(iface string) (*SocketCAN, error) {
	return nil, errors.New("canbus: SocketCAN requires Linux")
}

// WriteFrame implements FrameWriter.
func (s *SocketCAN) WriteFrame(f Frame) error { return ErrClosed }

// Close is a no-op.
func (s *SocketCAN) Close() error { return nil }
