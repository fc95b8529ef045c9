package canbus

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SLCAN bit rate commands (Lawicel "Sn").
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// SLCAN writes frames through a serial-line CAN adapter.
type SLCAN struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// OpenSLCAN opens the adapter on device, sets the CAN bit rate and opens
// the channel.
func OpenSLCAN(device string, baud, bitrate int) (*SLCAN, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("canbus: open slcan %s: %w", device, err)
	}
	s, err := NewSLCAN(port, bitrate)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// NewSLCAN initialises an adapter already opened as port.
func NewSLCAN(port io.ReadWriteCloser, bitrate int) (*SLCAN, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("canbus: unsupported slcan bitrate %d", bitrate)
	}
	// close first in case the adapter was left open
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if _, err := io.WriteString(port, cmd); err != nil {
			return nil, fmt.Errorf("canbus: slcan init %q: %w", strings.TrimSpace(cmd), err)
		}
	}
	return &SLCAN{port: port}, nil
}

// FormatSLCAN renders f as an SLCAN transmit command, e.g. "t0858...\r".
func FormatSLCAN(f Frame) (string, error) {
	if f.Len > MaxDataLen {
		return "", ErrFrameTooLong
	}
	var b strings.Builder
	fmt.Fprintf(&b, "t%03X%d", f.ID&0x7FF, f.Len)
	for _, d := range f.Data[:f.Len] {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteByte('\r')
	return b.String(), nil
}

// WriteFrame implements FrameWriter.
func (s *SLCAN) WriteFrame(f Frame) error {
	cmd, err := FormatSLCAN(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.port, cmd); err != nil {
		return fmt.Errorf("canbus: slcan write: %w", err)
	}
	return nil
}

// Close closes the CAN channel and the serial port.
func (s *SLCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, werr := io.WriteString(s.port, "C\r")
	cerr := s.port.Close()
	if cerr != nil {
		return fmt.Errorf("canbus: slcan close: %w", cerr)
	}
	if werr != nil {
		return fmt.Errorf("canbus: slcan close channel: %w", werr)
	}
	return nil
}
