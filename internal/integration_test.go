package internal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/propvalve/internal/canbus"
	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/mqtt"
	"github.com/sweeney/propvalve/internal/output"
)

const (
	testNode     = 5
	testOverload = emcy.ClassCurrentOutput | 0x11
	testFault    = emcy.ClassCurrentOutput | 0x21
)

type frameLog struct {
	mu     sync.Mutex
	frames []canbus.Frame
}

func (l *frameLog) WriteFrame(f canbus.Frame) error {
	l.mu.Lock()
	l.frames = append(l.frames, f)
	l.mu.Unlock()
	return nil
}

type pipeline struct {
	sim        *hal.Sim
	sol        *output.SolenoidOutput
	publisher  *mqtt.FakePublisher
	frames     *frameLog
	dispatcher *emcy.Dispatcher
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// newPipeline wires a PWM-mode solenoid over a plant that settles at
// fullScale mA, with EMCY codes fanned out to MQTT and CAN.
func newPipeline(t *testing.T, fullScale int32) *pipeline {
	t.Helper()
	p := &pipeline{
		sim:       hal.NewSim(&hal.Plant{Inputs: []hal.Channel{0}, Sense: 0, FullScale: fullScale, SenseAmpl: 1000}),
		publisher: mqtt.NewFakePublisher(),
		frames:    &frameLog{},
	}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.dispatcher = emcy.NewDispatcher(testNode, func() time.Time { return start }, p.publisher, canbus.NewTransport(p.frames))

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.dispatcher.Run(ctx)
	}()

	conf := &output.SolenoidOutputConf{}
	conf.Reset()
	p.sol = output.NewSolenoidOutput(conf, output.SolenoidConfig{
		PWM:          0,
		ADC:          0,
		SenseAmpl:    1000,
		MaxMA:        2500,
		FaultMA:      5000,
		EmcyOverload: testOverload,
		EmcyFault:    testFault,
	}, p.sim, p.dispatcher)
	p.sol.SetMode(output.ModePWM)
	return p
}

func (p *pipeline) step() {
	p.sim.Step(20)
	p.sol.Step(20)
}

// drain stops the dispatcher after it has flushed every queued event.
func (p *pipeline) drain() {
	p.cancel()
	p.wg.Wait()
}

// TestIntegrationOverloadToTransports follows an overload from the plant
// through the solenoid state machine to the MQTT payload and the CAN frame.
func TestIntegrationOverloadToTransports(t *testing.T) {
	p := newPipeline(t, 4000)
	p.sol.Set(1000)

	tripped := false
	for i := 0; i < 20 && !tripped; i++ {
		p.step()
		tripped = p.sol.State() == output.StateOverload
	}
	if !tripped {
		t.Fatalf("expected OVERLOAD, got %s (current %d mA)", p.sol.State(), p.sol.Current())
	}

	// Staying overloaded must not repeat the EMCY
	for i := 0; i < 20; i++ {
		p.step()
	}
	if p.sol.State() != output.StateOverload {
		t.Errorf("overload must not self-clear, got %s", p.sol.State())
	}
	if d := p.sim.DutyOf(0); d != 0 {
		t.Errorf("duty while overloaded: got %d, want 0", d)
	}
	p.drain()

	if len(p.publisher.Events) != 1 {
		t.Fatalf("mqtt events: got %d, want 1", len(p.publisher.Events))
	}
	ev := p.publisher.Events[0]
	if ev.Code != testOverload || ev.Node != testNode {
		t.Errorf("event: got code 0x%04X node %d", uint16(ev.Code), ev.Node)
	}

	var parsed mqtt.Payload
	if err := json.Unmarshal(p.publisher.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.EMCY.Code != "0x2311" {
		t.Errorf("payload code: got %q, want 0x2311", parsed.EMCY.Code)
	}
	if parsed.EMCY.Timestamp != "2026-01-01T12:00:00Z" {
		t.Errorf("payload timestamp: got %q", parsed.EMCY.Timestamp)
	}

	if len(p.frames.frames) != 1 {
		t.Fatalf("can frames: got %d, want 1", len(p.frames.frames))
	}
	f := p.frames.frames[0]
	if f.ID != 0x80+testNode {
		t.Errorf("COB-ID: got 0x%03X, want 0x085", f.ID)
	}
	want := [8]byte{0x11, 0x23, emcy.RegGeneric | emcy.RegCurrent, 0x11}
	if f.Data != want {
		t.Errorf("frame data: got % X, want % X", f.Data, want)
	}

	sent, dropped := p.dispatcher.Counts()
	if sent != 1 || dropped != 0 {
		t.Errorf("dispatcher counts: sent=%d dropped=%d, want 1/0", sent, dropped)
	}
}

// TestIntegrationReleaseClearsOverload verifies that releasing the request
// returns the solenoid to OFF and a new request regulates again.
func TestIntegrationReleaseClearsOverload(t *testing.T) {
	p := newPipeline(t, 4000)
	defer p.drain()

	p.sol.Set(1000)
	for i := 0; i < 20 && p.sol.State() != output.StateOverload; i++ {
		p.step()
	}
	if p.sol.State() != output.StateOverload {
		t.Fatalf("expected OVERLOAD, got %s", p.sol.State())
	}

	p.sol.Set(0)
	for i := 0; i < 10; i++ {
		p.step()
	}
	if p.sol.State() != output.StateOff {
		t.Fatalf("expected OFF after release, got %s", p.sol.State())
	}

	// Half duty settles at 2000 mA, inside the limit
	p.sol.Set(500)
	for i := 0; i < 30; i++ {
		p.step()
	}
	if p.sol.State() != output.StateOn {
		t.Errorf("expected ON, got %s", p.sol.State())
	}
	if c := p.sol.Current(); c < 1900 || c > 2100 {
		t.Errorf("current: got %d mA, want about 2000", c)
	}
}

// TestIntegrationNoEventsInRange verifies a healthy output raises nothing.
func TestIntegrationNoEventsInRange(t *testing.T) {
	p := newPipeline(t, 2000)
	p.sol.Set(1000)
	for i := 0; i < 50; i++ {
		p.step()
	}
	p.drain()

	if p.sol.State() != output.StateOn {
		t.Errorf("expected ON, got %s", p.sol.State())
	}
	if n := p.publisher.EventCount(); n != 0 {
		t.Errorf("expected no EMCY events, got %d", n)
	}
	if len(p.frames.frames) != 0 {
		t.Errorf("expected no CAN frames, got %d", len(p.frames.frames))
	}
}
