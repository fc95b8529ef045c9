package output

import (
	"github.com/sweeney/propvalve/internal/filter"
	"github.com/sweeney/propvalve/internal/mathx"
)

// PropToggleHysteresis is the dead band around the toggle threshold.
const PropToggleHysteresis = 100

// PropOutput turns a joystick-style request into a shaped signed target,
// with optional on/off snapping, press-to-latch toggling and a pre-delay
// that ignores short presses. It keeps its own state; the shaped target is
// handed to an optional Actuator every Step.
type PropOutput struct {
	conf     *PropOutputConf
	actuator Actuator

	state     State
	targetReq int32
	lastReq   int32
	target    int32

	hyst        filter.Hysteresis
	hystPrev    bool
	enableDelay filter.Delay

	toggleOn    int32
	toggleLimit filter.Delay

	shaper shaper
}

// NewPropOutput creates an output in OFF state. act may be nil.
func NewPropOutput(conf *PropOutputConf, act Actuator) *PropOutput {
	p := &PropOutput{
		conf:     conf,
		actuator: act,
		state:    StateOff,
		hyst:     filter.NewHysteresis(conf.ToggleThreshold, PropToggleHysteresis, false),
		shaper:   newShaper(),
	}
	p.enableDelay.Init(conf.EnablePreDelayMs)
	return p
}

// Set requests a signed target, -1000..1000.
func (p *PropOutput) Set(req int32) {
	if p.state.Terminal() {
		return
	}
	p.targetReq = req
}

// Step advances the output by stepMs.
func (p *PropOutput) Step(stepMs int32) {
	if p.state.Terminal() {
		p.zero()
		p.write()
		return
	}

	p.validate()
	mode := p.conf.Mode
	req := p.targetReq

	// a direction change starts a fresh press
	if mathx.Sign(req) != mathx.Sign(p.lastReq) {
		p.hyst.Reset()
		p.hystPrev = false
		p.enableDelay.Init(p.conf.EnablePreDelayMs)
	}
	p.lastReq = req

	p.hyst.Trigger = p.conf.ToggleThreshold
	pressed := p.hyst.Step(mathx.Abs(req))
	rising := pressed && !p.hystPrev
	p.hystPrev = pressed

	on := pressed
	if mode == PropNormal {
		on = req != 0
	}
	if on {
		p.enableDelay.Step(stepMs)
	} else {
		p.enableDelay.Init(p.conf.EnablePreDelayMs)
	}
	gated := on && !p.enableDelay.HasEnded()

	if mode.Toggle() {
		armed := false
		if rising {
			dir := mathx.Sign(req)
			if p.toggleOn == dir {
				p.toggleOn = 0
			} else {
				p.toggleOn = dir
				limit := p.conf.ToggleLimitMsPos
				if dir < 0 {
					limit = p.conf.ToggleLimitMsNeg
				}
				if limit > 0 {
					p.toggleLimit.Init(limit)
					armed = true
				} else {
					p.toggleLimit.End()
				}
			}
		}
		// the limit counts from the step after the press
		if p.toggleOn != 0 && !armed && p.toggleLimit.Step(stepMs) {
			p.toggleOn = 0
		}
	} else {
		p.toggleOn = 0
	}

	var shapeReq int32
	switch mode {
	case PropToggle, OnOffToggle:
		shapeReq = p.toggleOn * TargetMax
	case OnOffNormal:
		if pressed {
			shapeReq = mathx.Sign(req) * TargetMax
		}
	default:
		shapeReq = req
	}
	if gated {
		shapeReq = 0
	}

	p.target = p.shaper.step(stepMs, shapeReq, p.conf.Acc, p.conf.Dec, mode.OnOff())

	if p.target != 0 {
		p.state = StateOn
	} else {
		p.state = StateOff
	}
	p.write()
}

func (p *PropOutput) validate() {
	p.conf.Acc = mathx.Clamp(p.conf.Acc, 0, 100)
	p.conf.Dec = mathx.Clamp(p.conf.Dec, 0, 100)
	p.conf.ToggleThreshold = mathx.Clamp(p.conf.ToggleThreshold, 0, TargetMax)
	p.conf.EnablePreDelayMs = mathx.Max(p.conf.EnablePreDelayMs, 0)
	p.conf.ToggleLimitMsPos = mathx.Max(p.conf.ToggleLimitMsPos, 0)
	p.conf.ToggleLimitMsNeg = mathx.Max(p.conf.ToggleLimitMsNeg, 0)
	switch p.conf.Mode {
	case PropNormal, PropToggle, OnOffNormal, OnOffToggle:
	default:
		p.conf.Mode = PropNormal
	}
	p.targetReq = mathx.Clamp(p.targetReq, TargetMin, TargetMax)
}

func (p *PropOutput) zero() {
	p.target = 0
	p.targetReq = 0
	p.lastReq = 0
	p.toggleOn = 0
	p.hyst.Reset()
	p.hystPrev = false
	p.enableDelay.Init(p.conf.EnablePreDelayMs)
	p.shaper.reset()
}

func (p *PropOutput) write() {
	if p.actuator != nil {
		p.actuator.Set(p.target)
	}
}

// SetState requests a transition with the shared guard. Entering DISABLED,
// OVERLOAD or FAULT zeroes the target immediately.
func (p *PropOutput) SetState(s State) {
	if !guardTransition(p.state, s) {
		return
	}
	if s == StateDisabled {
		p.Disable()
		return
	}
	p.state = s
	if s.Terminal() {
		p.zero()
		p.write()
	}
}

// Enable leaves DISABLED.
func (p *PropOutput) Enable() {
	if p.state == StateDisabled {
		p.state = StateOff
	}
}

// Disable enters DISABLED and zeroes the target.
func (p *PropOutput) Disable() {
	p.state = StateDisabled
	p.zero()
	p.write()
}

// SetMode changes the mode.
func (p *PropOutput) SetMode(m PropMode) { p.conf.Mode = m }

// Mode returns the mode.
func (p *PropOutput) Mode() PropMode { return p.conf.Mode }

// State returns the output state.
func (p *PropOutput) State() State { return p.state }

// TargetReq returns the requested target.
func (p *PropOutput) TargetReq() int32 { return p.targetReq }

// Target returns the shaped target.
func (p *PropOutput) Target() int32 { return p.target }

// ToggleOn returns the latched toggle direction: -1, 0 or 1.
func (p *PropOutput) ToggleOn() int32 { return p.toggleOn }

// Status implements Reporter.
func (p *PropOutput) Status() Status {
	return Status{State: p.state, TargetReq: p.targetReq, Target: p.target}
}
