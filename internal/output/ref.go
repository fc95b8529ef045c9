package output

import (
	"fmt"

	"github.com/sweeney/propvalve/internal/filter"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/mathx"
	"github.com/sweeney/propvalve/internal/pid"
)

// Voltage loop gains and filter length.
const (
	RefVoltageP = 20
	RefVoltageI = 1
	RefAvgCount = 4
	refSumLimit = int64(PWMMax) * pid.Scale
)

// RefConfig is the static wiring of a reference output.
type RefConfig struct {
	PWM hal.Channel
	// ADC senses the output voltage; SenseAmpl converts counts to mV:
	// mv = adc * SenseAmpl / 1000.
	ADC       hal.Channel
	SenseAmpl int32
}

// RefOutput holds a PWM-generated voltage at a signed target. The target is
// shaped like the other bidirectional outputs and mapped into the positive
// or negative voltage window of the configured limit frame; target 0 holds
// the neutral point between the two windows. The output stage inverts, so
// the written duty is 1000 - dc.
type RefOutput struct {
	conf *RefOutputConf
	cfg  RefConfig
	hw   hal.Platform

	state     State
	targetReq int32
	target    int32
	targetMV  int32
	mv        int32
	avg       filter.MovingAverage

	shaper shaper
	pid    pid.PID
	dc     int32
	pwm    uint16

	err error
}

// NewRefOutput creates a reference output in OFF state.
func NewRefOutput(conf *RefOutputConf, cfg RefConfig, hw hal.Platform) *RefOutput {
	r := &RefOutput{
		conf:   conf,
		cfg:    cfg,
		hw:     hw,
		state:  StateOff,
		avg:    filter.NewMovingAverage(RefAvgCount),
		shaper: newShaper(),
		pid:    pid.New(RefVoltageP, RefVoltageI, 0),
	}
	r.pid.SetSumLimits(-refSumLimit, refSumLimit)
	return r
}

// Set requests a signed target, -1000..1000.
func (r *RefOutput) Set(req int32) {
	if r.state.Terminal() {
		return
	}
	r.targetReq = req
}

// Step regulates the output voltage. vddMV is the present supply, used by
// the relative limit frame and to clamp the absolute one.
func (r *RefOutput) Step(vddMV, stepMs int32) {
	raw, err := r.hw.ReadADC(r.cfg.ADC)
	if err != nil {
		r.err = fmt.Errorf("ref: %w", err)
	} else {
		r.mv = r.avg.Step(mathx.Max(int32(raw)*r.cfg.SenseAmpl/1000, 0))
	}

	if r.state.Terminal() {
		r.stop()
		r.write(0)
		return
	}

	r.validate(vddMV)
	mode := r.conf.Mode
	req := r.targetReq
	if mode.OnOff() {
		req = mathx.Sign(req) * TargetMax
	}
	r.target = r.shaper.step(stepMs, req, r.conf.Acc, r.conf.Dec, mode.OnOff())

	lim := r.limitsMV(vddMV)
	switch {
	case r.target > 0:
		r.targetMV = mathx.Lerp(r.target, lim.PosMin, lim.PosMax)
	case r.target < 0:
		r.targetMV = mathx.Lerp(-r.target, lim.NegMin, lim.NegMax)
	default:
		r.targetMV = (lim.PosMin + lim.NegMin) / 2
	}

	r.pid.SetTarget(r.targetMV)
	r.pid.Step(stepMs, r.mv)
	r.dc = mathx.Clamp(r.dc+r.pid.Output(), 0, PWMMax)

	if r.target != 0 {
		r.state = StateOn
	} else {
		r.state = StateOff
	}
	r.write(uint16(PWMMax - r.dc))
}

func (r *RefOutput) validate(vddMV int32) {
	r.conf.Acc = mathx.Clamp(r.conf.Acc, 0, 100)
	r.conf.Dec = mathx.Clamp(r.conf.Dec, 0, 100)
	clampLimits(&r.conf.Rel, 0, TargetMax)
	clampLimits(&r.conf.Abs, 0, mathx.Max(vddMV, 0))
	switch r.conf.Mode {
	case RefRel, RefAbs, RefOnOffRel, RefOnOffAbs:
	default:
		r.conf.Mode = RefRel
	}
	r.targetReq = mathx.Clamp(r.targetReq, TargetMin, TargetMax)
}

func clampLimits(l *RefLimitConf, lo, hi int32) {
	l.PosMin = mathx.Clamp(l.PosMin, lo, hi)
	l.PosMax = mathx.Clamp(l.PosMax, lo, hi)
	l.NegMin = mathx.Clamp(l.NegMin, lo, hi)
	l.NegMax = mathx.Clamp(l.NegMax, lo, hi)
}

// limitsMV returns the active limit frame in millivolts.
func (r *RefOutput) limitsMV(vddMV int32) RefLimitConf {
	if r.conf.Mode.Absolute() {
		return r.conf.Abs
	}
	rel := r.conf.Rel
	return RefLimitConf{
		PosMin: rel.PosMin * vddMV / 1000,
		PosMax: rel.PosMax * vddMV / 1000,
		NegMin: rel.NegMin * vddMV / 1000,
		NegMax: rel.NegMax * vddMV / 1000,
	}
}

func (r *RefOutput) stop() {
	r.targetReq = 0
	r.target = 0
	r.targetMV = 0
	r.dc = 0
	r.pid.Reset()
	r.shaper.reset()
}

func (r *RefOutput) write(duty uint16) {
	r.pwm = duty
	if err := r.hw.SetPWM(r.cfg.PWM, duty); err != nil {
		r.err = fmt.Errorf("ref: %w", err)
	}
}

// SetState requests a transition with the shared guard. DISABLED, OVERLOAD
// and FAULT write zero duty at once.
func (r *RefOutput) SetState(s State) {
	if !guardTransition(r.state, s) {
		return
	}
	if s == StateDisabled {
		r.Disable()
		return
	}
	r.state = s
	if s.Terminal() {
		r.stop()
		r.write(0)
	}
}

// Enable leaves DISABLED.
func (r *RefOutput) Enable() {
	if r.state == StateDisabled {
		r.state = StateOff
	}
}

// Disable enters DISABLED and writes zero duty without ramping.
func (r *RefOutput) Disable() {
	r.state = StateDisabled
	r.stop()
	r.write(0)
}

// SetMode changes the limit frame and shaping mode.
func (r *RefOutput) SetMode(m RefMode) { r.conf.Mode = m }

// Mode returns the mode.
func (r *RefOutput) Mode() RefMode { return r.conf.Mode }

// State returns the output state.
func (r *RefOutput) State() State { return r.state }

// TargetReq returns the requested target.
func (r *RefOutput) TargetReq() int32 { return r.targetReq }

// Target returns the shaped target.
func (r *RefOutput) Target() int32 { return r.target }

// TargetMV returns the voltage setpoint of the last Step.
func (r *RefOutput) TargetMV() int32 { return r.targetMV }

// Voltage returns the averaged output voltage in mV.
func (r *RefOutput) Voltage() int32 { return r.mv }

// PWM returns the duty written on the last Step.
func (r *RefOutput) PWM() uint16 { return r.pwm }

// Conf returns the referenced configuration.
func (r *RefOutput) Conf() *RefOutputConf { return r.conf }

// Err returns the last hardware error, if any.
func (r *RefOutput) Err() error { return r.err }

// Status implements Reporter. Current carries the output voltage in mV.
func (r *RefOutput) Status() Status {
	return Status{
		State:     r.state,
		TargetReq: r.targetReq,
		Target:    r.target,
		Current:   r.mv,
		PWM:       r.pwm,
	}
}
