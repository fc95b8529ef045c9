package output

import (
	"fmt"

	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/filter"
	"github.com/sweeney/propvalve/internal/hal"
)

// DriveKind selects how the base output switches its load.
type DriveKind int

const (
	// DriveGate switches a digital gate; the base writes it.
	DriveGate DriveKind = iota
	// DrivePWM is a duty-cycle channel owned by a higher-level output; the
	// base only forces it to zero on fault.
	DrivePWM
)

// Drive is the output channel, tagged by kind.
type Drive struct {
	Kind DriveKind
	Gate hal.Pin
	PWM  hal.Channel
}

// GateDrive returns a Drive for a digital gate.
func GateDrive(pin hal.Pin) Drive { return Drive{Kind: DriveGate, Gate: pin, PWM: hal.NoChannel} }

// PWMDrive returns a Drive for a PWM channel.
func PWMDrive(ch hal.Channel) Drive { return Drive{Kind: DrivePWM, Gate: hal.NoPin, PWM: ch} }

// Config is the static configuration of a base output.
type Config struct {
	// ADC is the current sense channel; hal.NoChannel disables sensing.
	ADC   hal.Channel
	Drive Drive
	// SenseAmpl converts ADC counts to mA: ma = adc * SenseAmpl / 1000.
	SenseAmpl int32
	// MaxMA is the overload limit, FaultMA the fault limit. Zero disables a limit.
	MaxMA   int32
	FaultMA int32
	// AvgCount is the moving average length for the current.
	AvgCount     int32
	EmcyOverload emcy.Code
	EmcyFault    emcy.Code
}

// MinCurrentSettleMs is how long an output must be ON before the open-load
// (minimum current) check applies.
const MinCurrentSettleMs = 100

// Output is a current-sensed power output with an ON/OFF/OVERLOAD/FAULT
// state machine.
type Output struct {
	cfg  Config
	hw   hal.Platform
	sink emcy.Sink

	state   State
	current int32
	avg     filter.MovingAverage

	minMA     int32
	minSettle filter.Delay

	err error
}

// NewOutput creates an output in OFF state and drives its channel low.
// sink may be nil.
func NewOutput(cfg Config, hw hal.Platform, sink emcy.Sink) *Output {
	o := &Output{
		cfg:   cfg,
		hw:    hw,
		sink:  sink,
		state: StateOff,
		avg:   filter.NewMovingAverage(cfg.AvgCount),
	}
	o.drive(false)
	return o
}

// SetState requests a transition. From FAULT or OVERLOAD only OFF is
// accepted; DISABLED is left only through Enable. Entering FAULT or
// OVERLOAD emits the configured EMCY code once.
func (o *Output) SetState(next State) {
	if !guardTransition(o.state, next) {
		return
	}
	if next == StateDisabled {
		o.Disable()
		return
	}
	switch next {
	case StateFault:
		o.emergency(o.cfg.EmcyFault)
	case StateOverload:
		o.emergency(o.cfg.EmcyOverload)
	case StateOn:
		o.minSettle.Init(MinCurrentSettleMs)
	}
	o.state = next
}

// Step samples the current and enforces the limits. Call once per cycle.
func (o *Output) Step(stepMs int32) {
	if o.cfg.ADC != hal.NoChannel {
		raw, err := o.hw.ReadADC(o.cfg.ADC)
		if err != nil {
			o.err = fmt.Errorf("output: %w", err)
			if o.state == StateOn {
				// no sensing means no protection
				o.drive(false)
				o.SetState(StateFault)
			}
		} else {
			ma := int32(raw) * o.cfg.SenseAmpl / 1000
			if ma < 0 {
				ma = 0
			}
			o.current = o.avg.Step(ma)
		}
	}

	if o.state != StateOn {
		o.drive(false)
		return
	}

	settled := o.minSettle.HasEnded() || o.minSettle.Step(stepMs)
	switch {
	case o.cfg.FaultMA > 0 && o.current > o.cfg.FaultMA:
		o.drive(false)
		o.SetState(StateFault)
	case o.cfg.MaxMA > 0 && o.current > o.cfg.MaxMA:
		o.drive(false)
		o.SetState(StateOverload)
	case o.minMA > 0 && settled && o.current < o.minMA:
		o.drive(false)
		o.SetState(StateFault)
	default:
		o.drive(true)
	}
}

// Enable leaves DISABLED for OFF. It has no effect in any other state.
func (o *Output) Enable() {
	if o.state == StateDisabled {
		o.state = StateOff
	}
}

// Disable enters DISABLED from any state and drives the output low.
func (o *Output) Disable() {
	o.state = StateDisabled
	o.drive(false)
}

// State returns the current state.
func (o *Output) State() State { return o.state }

// Current returns the averaged current in mA.
func (o *Output) Current() int32 { return o.current }

// SetMinCurrent enables the open-load check; zero disables it.
func (o *Output) SetMinCurrent(ma int32) { o.minMA = ma }

// Err returns the last hardware error, if any.
func (o *Output) Err() error { return o.err }

// Status implements Reporter.
func (o *Output) Status() Status {
	var target int32
	if o.state == StateOn {
		target = TargetMax
	}
	return Status{State: o.state, TargetReq: target, Target: target, Current: o.current}
}

func (o *Output) emergency(code emcy.Code) {
	if o.sink != nil && code != 0 {
		o.sink.Emergency(code)
	}
}

func (o *Output) drive(on bool) {
	var err error
	switch o.cfg.Drive.Kind {
	case DriveGate:
		if o.cfg.Drive.Gate == hal.NoPin {
			return
		}
		err = o.hw.SetGPIO(o.cfg.Drive.Gate, on)
	case DrivePWM:
		if on || o.cfg.Drive.PWM == hal.NoChannel {
			return
		}
		err = o.hw.SetPWM(o.cfg.Drive.PWM, 0)
	}
	if err != nil {
		o.err = fmt.Errorf("output: %w", err)
	}
}
