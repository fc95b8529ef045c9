//go:build linux

package canbus

import "testing"

func TestOpenSocketCANUnknownInterface(t *testing.T) {
	if _, err := OpenSocketCAN("nocan9"); err == nil {
		t.Error("expected error for missing interface")
	}
}

func TestSocketCANClosed(t *testing.T) {
	s := &SocketCAN{fd: -1}
	if err := s.WriteFrame(Frame{ID: 0x81}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected nil from closing a closed socket, got %v", err)
	}
}
