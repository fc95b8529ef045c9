package main

import (
	"errors"
	"fmt"

	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/output"
	"github.com/sweeney/propvalve/internal/status"
	"github.com/sweeney/propvalve/internal/store"
	"github.com/sweeney/propvalve/internal/web"
)

// PWM channels.
const (
	pwmValveA hal.Channel = iota
	pwmValveB
	pwmCoil
	pwmRef
)

// ADC channels (ADS1115 inputs AIN0..AIN3).
const (
	adcValve hal.Channel = iota
	adcCoil
	adcRef
	adcAux
)

// Electrical limits shared by the current-sensed outputs.
const (
	overloadMA   = 2500
	faultMA      = 3000
	senseAmpl    = 1000
	ditherFreqHz = 100
	ditherAmpl   = 100
	auxAvgCount  = 4
)

// Output indexes carried in the low nibble of the EMCY codes.
const (
	idxValveA = 1 + iota
	idxValveB
	idxCoil
	idxAux
)

func overloadCode(idx int) emcy.Code { return emcy.ClassCurrentOutput | 0x10 | emcy.Code(idx) }
func faultCode(idx int) emcy.Code    { return emcy.ClassCurrentOutput | 0x20 | emcy.Code(idx) }

var (
	errUnknownOutput = errors.New("unknown output")
	errNoTarget      = errors.New("output takes no target")
)

// controller is the operator surface shared by every output kind.
type controller interface {
	output.Reporter
	SetState(output.State)
	Enable()
	Disable()
}

// channel is one named output exposed over HTTP and the status tracker.
type channel struct {
	name string
	kind string
	ctl  controller
	set  func(int32)
	err  func() error
}

// simulator advances a plant model. Nil on real hardware.
type simulator interface {
	Step(stepMs int32)
}

// driver owns every output and steps them from the control loop.
type driver struct {
	sim   simulator
	vddMV int32

	lever *output.PropOutput
	valve *output.DualSolenoidOutput
	coil  *output.SolenoidOutput
	ref   *output.RefOutput
	aux   *output.Output

	channels []channel
}

// newDriver builds the outputs over hw. Confs are referenced, so cfg must
// outlive the driver.
func newDriver(cfg *store.Config, hw hal.Platform, sink emcy.Sink, sim simulator, vddMV int32, auxGate hal.Pin) *driver {
	d := &driver{sim: sim, vddMV: vddMV}

	d.valve = output.NewDualSolenoidOutput(&cfg.Dual, output.DualConfig{
		PWMA:          pwmValveA,
		PWMB:          pwmValveB,
		ADC:           adcValve,
		DitherFreqHz:  ditherFreqHz,
		DitherAmpl:    ditherAmpl,
		SenseAmpl:     senseAmpl,
		MaxMA:         overloadMA,
		FaultMA:       faultMA,
		EmcyOverloadA: overloadCode(idxValveA),
		EmcyOverloadB: overloadCode(idxValveB),
		EmcyFaultA:    faultCode(idxValveA),
		EmcyFaultB:    faultCode(idxValveB),
	}, hw, sink)
	d.lever = output.NewPropOutput(&cfg.Prop, d.valve)
	d.coil = output.NewSolenoidOutput(&cfg.Solenoid, output.SolenoidConfig{
		PWM:          pwmCoil,
		DitherFreqHz: ditherFreqHz,
		DitherAmpl:   ditherAmpl,
		ADC:          adcCoil,
		SenseAmpl:    senseAmpl,
		MaxMA:        overloadMA,
		FaultMA:      faultMA,
		EmcyOverload: overloadCode(idxCoil),
		EmcyFault:    faultCode(idxCoil),
	}, hw, sink)
	d.ref = output.NewRefOutput(&cfg.Ref, output.RefConfig{
		PWM:       pwmRef,
		ADC:       adcRef,
		SenseAmpl: senseAmpl,
	}, hw)
	d.aux = output.NewOutput(output.Config{
		ADC:          adcAux,
		Drive:        output.GateDrive(auxGate),
		SenseAmpl:    senseAmpl,
		MaxMA:        overloadMA,
		FaultMA:      faultMA,
		AvgCount:     auxAvgCount,
		EmcyOverload: overloadCode(idxAux),
		EmcyFault:    faultCode(idxAux),
	}, hw, sink)

	d.channels = []channel{
		{name: "lever", kind: "prop", ctl: d.lever, set: d.lever.Set},
		{name: "valve", kind: "dual", ctl: d.valve, err: d.valve.Err},
		{name: "coil", kind: "solenoid", ctl: d.coil, set: d.coil.Set, err: d.coil.Err},
		{name: "ref", kind: "ref", ctl: d.ref, set: d.ref.Set, err: d.ref.Err},
		{name: "aux", kind: "output", ctl: d.aux, set: d.setAux, err: d.aux.Err},
	}
	return d
}

// setAux switches the gate output: any non-zero target requests ON.
func (d *driver) setAux(target int32) {
	if target != 0 {
		d.aux.SetState(output.StateOn)
		return
	}
	d.aux.SetState(output.StateOff)
}

// step runs one control cycle. The lever feeds the valve, so it goes first.
func (d *driver) step(stepMs int32) {
	if d.sim != nil {
		d.sim.Step(stepMs)
	}
	d.lever.Step(stepMs)
	d.valve.Step(stepMs)
	d.coil.Step(stepMs)
	d.ref.Step(d.vddMV, stepMs)
	d.aux.Step(stepMs)
}

// apply executes an operator command.
func (d *driver) apply(cmd web.Command) error {
	ch, ok := d.lookup(cmd.Output)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownOutput, cmd.Output)
	}
	switch cmd.Action {
	case web.ActionTarget:
		if ch.set == nil {
			return fmt.Errorf("%s: %w", ch.name, errNoTarget)
		}
		ch.set(cmd.Value)
	case web.ActionEnable:
		ch.ctl.Enable()
	case web.ActionDisable:
		ch.ctl.Disable()
	case web.ActionOff:
		ch.ctl.SetState(output.StateOff)
	default:
		return fmt.Errorf("%s: unknown action %q", ch.name, cmd.Action)
	}
	return nil
}

func (d *driver) lookup(name string) (channel, bool) {
	for _, ch := range d.channels {
		if ch.name == name {
			return ch, true
		}
	}
	return channel{}, false
}

// report pushes every output's status into the tracker.
func (d *driver) report(tr *status.Tracker) {
	for _, ch := range d.channels {
		var err error
		if ch.err != nil {
			err = ch.err()
		}
		tr.Update(ch.name, ch.kind, ch.ctl.Status(), err)
	}
}

// disableAll de-energises every output.
func (d *driver) disableAll() {
	for _, ch := range d.channels {
		ch.ctl.Disable()
	}
}
