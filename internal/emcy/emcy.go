// Package emcy models CANopen emergency (EMCY) notifications raised by the
// output control loops and fans them out to transports without blocking the
// caller.
package emcy

import (
	"context"
	"log"
	"sync"
	"time"
)

// Code is a 16-bit CANopen emergency error code. The high byte is the class.
type Code uint16

// Error code classes used by the outputs.
const (
	ClassCurrentOutput  Code = 0x2300
	ClassVoltageOutput  Code = 0x3300
	ClassDeviceSpecific Code = 0xFF00
)

// Error register bits (object 0x1001).
const (
	RegGeneric byte = 0x01
	RegCurrent byte = 0x02
	RegVoltage byte = 0x04
)

// Class returns the class part of the code.
func (c Code) Class() Code { return c & 0xFF00 }

// Register returns the error register value matching the code class.
func (c Code) Register() byte {
	switch c.Class() & 0xF000 {
	case 0x2000:
		return RegGeneric | RegCurrent
	case 0x3000:
		return RegGeneric | RegVoltage
	}
	return RegGeneric
}

// Sink receives emergency codes from the control loops. Implementations must
// return quickly; delivery is fire-and-forget.
type Sink interface {
	Emergency(code Code)
}

// Event is a timestamped emergency ready for a transport.
type Event struct {
	Timestamp time.Time
	Code      Code
	Node      uint8
}

// Transport delivers events to the outside world (MQTT, CAN).
type Transport interface {
	PublishEMCY(ev Event) error
}

// DefaultQueue is the dispatcher queue length.
const DefaultQueue = 32

// Dispatcher is a Sink that timestamps codes and hands them to transports
// on its own goroutine. When the queue is full new events are dropped.
type Dispatcher struct {
	node       uint8
	now        func() time.Time
	queue      chan Event
	transports []Transport

	mu      sync.Mutex
	sent    int
	dropped int
}

// NewDispatcher creates a dispatcher for the given CANopen node id.
func NewDispatcher(node uint8, now func() time.Time, transports ...Transport) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		node:       node,
		now:        now,
		queue:      make(chan Event, DefaultQueue),
		transports: transports,
	}
}

// Emergency queues code for delivery.
func (d *Dispatcher) Emergency(code Code) {
	ev := Event{Timestamp: d.now(), Code: code, Node: d.node}
	select {
	case d.queue <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.Printf("emcy: queue full, dropping code 0x%04X", uint16(code))
	}
}

// Run delivers queued events until ctx is cancelled. Remaining events are
// flushed before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, t := range d.transports {
		if err := t.PublishEMCY(ev); err != nil {
			log.Printf("emcy: publish 0x%04X: %v", uint16(ev.Code), err)
		}
	}
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
}

// Counts returns delivered and dropped event totals.
func (d *Dispatcher) Counts() (sent, dropped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.dropped
}
