// Package canbus sends CANopen emergency frames over SocketCAN or a serial
// SLCAN adapter.
package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sweeney/propvalve/internal/emcy"
)

// COBIDEMCY is the base COB-ID of the emergency object; the node id is added.
const COBIDEMCY = 0x80

// MaxDataLen is the classic CAN payload size.
const MaxDataLen = 8

// socketCANFrameSize is sizeof(struct can_frame).
const socketCANFrameSize = 16

var (
	// ErrFrameTooLong is returned for payloads above MaxDataLen.
	ErrFrameTooLong = errors.New("canbus: frame data longer than 8 bytes")
	// ErrClosed is returned when writing to a closed bus.
	ErrClosed = errors.New("canbus: closed")
)

// Frame is a classic CAN frame with an 11-bit identifier.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [MaxDataLen]byte
}

// FrameWriter sends frames on a bus.
type FrameWriter interface {
	WriteFrame(f Frame) error
}

// EMCYFrame encodes ev as a CANopen EMCY message: error code (little
// endian), error register, then five manufacturer bytes. The first
// manufacturer byte carries the low byte of the code, which the daemon uses
// as the output index.
func EMCYFrame(ev emcy.Event) Frame {
	f := Frame{ID: COBIDEMCY + uint32(ev.Node&0x7F), Len: MaxDataLen}
	binary.LittleEndian.PutUint16(f.Data[0:2], uint16(ev.Code))
	f.Data[2] = ev.Code.Register()
	f.Data[3] = byte(ev.Code)
	return f
}

// MarshalSocketCAN lays f out as a Linux struct can_frame. can_id is in
// host byte order.
func MarshalSocketCAN(f Frame) ([]byte, error) {
	if f.Len > MaxDataLen {
		return nil, ErrFrameTooLong
	}
	buf := make([]byte, socketCANFrameSize)
	binary.NativeEndian.PutUint32(buf[0:4], f.ID&0x7FF)
	buf[4] = f.Len
	copy(buf[8:], f.Data[:f.Len])
	return buf, nil
}

// Transport publishes emergency events as EMCY frames.
type Transport struct {
	w FrameWriter
}

// NewTransport creates an EMCY transport on w.
func NewTransport(w FrameWriter) *Transport {
	return &Transport{w: w}
}

// PublishEMCY implements emcy.Transport.
func (t *Transport) PublishEMCY(ev emcy.Event) error {
	if err := t.w.WriteFrame(EMCYFrame(ev)); err != nil {
		return fmt.Errorf("canbus: emcy 0x%04X: %w", uint16(ev.Code), err)
	}
	return nil
}
