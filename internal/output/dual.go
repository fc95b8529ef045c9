package output

import (
	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/mathx"
)

// DualConfig is the static wiring of a dual solenoid output. Both coils
// share one current sense channel.
type DualConfig struct {
	PWMA          hal.Channel
	PWMB          hal.Channel
	ADC           hal.Channel
	DitherFreqHz  int32
	DitherAmpl    int32
	SenseAmpl     int32
	MaxMA         int32
	FaultMA       int32
	EmcyOverloadA emcy.Code
	EmcyOverloadB emcy.Code
	EmcyFaultA    emcy.Code
	EmcyFaultB    emcy.Code
}

// Solenoid indexes.
const (
	SolenoidA = 0
	SolenoidB = 1
)

// DualSolenoidOutput drives a two-coil valve as a signed actuator: A for
// positive targets, B for negative. Only one coil is energised at a time.
type DualSolenoidOutput struct {
	conf *DualSolenoidOutputConf
	sol  [2]*SolenoidOutput

	mode      SolenoidMode
	targetReq int32
	shaper    shaper
	current   int32
}

// NewDualSolenoidOutput creates the pair in CURRENT mode.
func NewDualSolenoidOutput(conf *DualSolenoidOutputConf, cfg DualConfig, hw hal.Platform, sink emcy.Sink) *DualSolenoidOutput {
	d := &DualSolenoidOutput{
		conf:   conf,
		mode:   ModeCurrent,
		shaper: newShaper(),
	}
	d.sol[SolenoidA] = NewSolenoidOutput(&conf.Solenoid[SolenoidA], SolenoidConfig{
		PWM:          cfg.PWMA,
		DitherFreqHz: cfg.DitherFreqHz,
		DitherAmpl:   cfg.DitherAmpl,
		ADC:          cfg.ADC,
		SenseAmpl:    cfg.SenseAmpl,
		MaxMA:        cfg.MaxMA,
		FaultMA:      cfg.FaultMA,
		EmcyOverload: cfg.EmcyOverloadA,
		EmcyFault:    cfg.EmcyFaultA,
	}, hw, sink)
	d.sol[SolenoidB] = NewSolenoidOutput(&conf.Solenoid[SolenoidB], SolenoidConfig{
		PWM:          cfg.PWMB,
		DitherFreqHz: cfg.DitherFreqHz,
		DitherAmpl:   cfg.DitherAmpl,
		ADC:          cfg.ADC,
		SenseAmpl:    cfg.SenseAmpl,
		MaxMA:        cfg.MaxMA,
		FaultMA:      cfg.FaultMA,
		EmcyOverload: cfg.EmcyOverloadB,
		EmcyFault:    cfg.EmcyFaultB,
	}, hw, sink)
	return d
}

// Set requests a signed target, -1000..1000.
func (d *DualSolenoidOutput) Set(target int32) {
	d.targetReq = target
}

// Step shapes the target, applies the direction interlock and steps both
// solenoids.
func (d *DualSolenoidOutput) Step(stepMs int32) {
	pos, neg := d.sol[SolenoidA], d.sol[SolenoidB]
	if d.conf.Invert {
		pos, neg = neg, pos
	}

	d.conf.Acc = mathx.Clamp(d.conf.Acc, 0, 100)
	d.conf.Dec = mathx.Clamp(d.conf.Dec, 0, 100)
	d.targetReq = mathx.Clamp(d.targetReq, TargetMin, TargetMax)

	target := d.shaper.step(stepMs, d.targetReq, d.conf.Acc, d.conf.Dec, d.mode == ModeOnOff)

	// the idle coil must have reached zero duty before the other one is
	// energised, otherwise both coils fight during a reversal
	switch {
	case target > 0:
		neg.Set(0)
		if neg.PWM() == 0 {
			pos.Set(target)
		} else {
			pos.Set(0)
		}
	case target < 0:
		pos.Set(0)
		if pos.PWM() == 0 {
			neg.Set(-target)
		} else {
			neg.Set(0)
		}
	default:
		pos.Set(0)
		neg.Set(0)
	}

	d.sol[SolenoidA].Step(stepMs)
	d.sol[SolenoidB].Step(stepMs)

	switch {
	case d.sol[SolenoidA].PWM() != 0:
		d.current = d.sol[SolenoidA].Current()
	case d.sol[SolenoidB].PWM() != 0:
		d.current = -d.sol[SolenoidB].Current()
	default:
		d.current = 0
	}
	if d.conf.Invert {
		d.current = -d.current
	}
}

// SetMode sets the mode of both solenoids.
func (d *DualSolenoidOutput) SetMode(m SolenoidMode) {
	d.mode = m
	d.sol[SolenoidA].SetMode(m)
	d.sol[SolenoidB].SetMode(m)
}

// Mode returns the regulation mode.
func (d *DualSolenoidOutput) Mode() SolenoidMode { return d.mode }

// TargetReq returns the requested target.
func (d *DualSolenoidOutput) TargetReq() int32 { return d.targetReq }

// Target returns the shaped target.
func (d *DualSolenoidOutput) Target() int32 { return d.shaper.target }

// Current returns the signed current of the active coil in mA.
func (d *DualSolenoidOutput) Current() int32 { return d.current }

// A returns the positive-direction solenoid (before wiring inversion).
func (d *DualSolenoidOutput) A() *SolenoidOutput { return d.sol[SolenoidA] }

// B returns the negative-direction solenoid (before wiring inversion).
func (d *DualSolenoidOutput) B() *SolenoidOutput { return d.sol[SolenoidB] }

// State combines both coils: a fault on either wins over an overload,
// which wins over DISABLED, ON and OFF.
func (d *DualSolenoidOutput) State() State {
	a, b := d.sol[SolenoidA].State(), d.sol[SolenoidB].State()
	for _, s := range []State{StateFault, StateOverload, StateDisabled, StateOn} {
		if a == s || b == s {
			return s
		}
	}
	return StateOff
}

// SetState forwards to both coils.
func (d *DualSolenoidOutput) SetState(s State) {
	d.sol[SolenoidA].SetState(s)
	d.sol[SolenoidB].SetState(s)
}

// Enable leaves DISABLED on both coils.
func (d *DualSolenoidOutput) Enable() {
	d.sol[SolenoidA].Enable()
	d.sol[SolenoidB].Enable()
}

// Disable disables both coils and drops the shaped target.
func (d *DualSolenoidOutput) Disable() {
	d.sol[SolenoidA].Disable()
	d.sol[SolenoidB].Disable()
	d.targetReq = 0
	d.shaper.reset()
}

// Err returns the first hardware error of either coil.
func (d *DualSolenoidOutput) Err() error {
	if err := d.sol[SolenoidA].Err(); err != nil {
		return err
	}
	return d.sol[SolenoidB].Err()
}

// Status implements Reporter. PWM is the active coil's duty.
func (d *DualSolenoidOutput) Status() Status {
	pwm := d.sol[SolenoidA].PWM()
	if pwm == 0 {
		pwm = d.sol[SolenoidB].PWM()
	}
	return Status{
		State:     d.State(),
		TargetReq: d.targetReq,
		Target:    d.shaper.target,
		Current:   d.current,
		PWM:       pwm,
	}
}
