package output

import (
	"fmt"

	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/filter"
	"github.com/sweeney/propvalve/internal/hal"
	"github.com/sweeney/propvalve/internal/mathx"
	"github.com/sweeney/propvalve/internal/pid"
)

// SolenoidMode selects what a solenoid target means.
type SolenoidMode string

const (
	// ModeCurrent regulates the coil current between MinMA and MaxMA.
	ModeCurrent SolenoidMode = "CURRENT"
	// ModePWM writes a duty cycle between MinPPT and MaxPPT.
	ModePWM SolenoidMode = "PWM"
	// ModeOnOff drives full duty for any non-zero target.
	ModeOnOff SolenoidMode = "ONOFF"
)

// SolenoidAvgCount is the current filter length.
const (
	SolenoidAvgCount   = 4
	solenoidSumLimit   = int64(PWMMax) * pid.Scale
	defaultDitherSign  = 1
	defaultDitherMaxMs = 500
)

// SolenoidConfig is the static wiring of a solenoid.
type SolenoidConfig struct {
	PWM          hal.Channel
	DitherFreqHz int32
	// DitherAmpl is the peak-to-peak dither in duty ppt.
	DitherAmpl   int32
	ADC          hal.Channel
	SenseAmpl    int32
	MaxMA        int32
	FaultMA      int32
	EmcyOverload emcy.Code
	EmcyFault    emcy.Code
}

// SolenoidOutput regulates a single-direction solenoid valve. The current
// loop is incremental: the PID output nudges the stored duty cycle and the
// dither is superimposed on the written value only.
type SolenoidOutput struct {
	base *Output
	conf *SolenoidOutputConf
	hw   hal.PWM
	pwmc hal.Channel

	mode   SolenoidMode
	target int32
	duty   int32
	pwm    uint16

	pid pid.PID

	ditherMs    int32
	ditherAmpl  int32
	ditherSign  int32
	ditherDelay filter.Delay

	err error
}

// NewSolenoidOutput creates a solenoid in CURRENT mode. conf is referenced,
// not copied, so bound and gain changes apply on the next Step.
func NewSolenoidOutput(conf *SolenoidOutputConf, cfg SolenoidConfig, hw hal.Platform, sink emcy.Sink) *SolenoidOutput {
	s := &SolenoidOutput{
		base: NewOutput(Config{
			ADC:          cfg.ADC,
			Drive:        PWMDrive(cfg.PWM),
			SenseAmpl:    cfg.SenseAmpl,
			MaxMA:        cfg.MaxMA,
			FaultMA:      cfg.FaultMA,
			AvgCount:     SolenoidAvgCount,
			EmcyOverload: cfg.EmcyOverload,
			EmcyFault:    cfg.EmcyFault,
		}, hw, sink),
		conf:       conf,
		hw:         hw,
		pwmc:       cfg.PWM,
		mode:       ModeCurrent,
		pid:        pid.New(conf.CurrentP, conf.CurrentI, 0),
		ditherAmpl: cfg.DitherAmpl,
		ditherSign: defaultDitherSign,
	}
	s.pid.SetSumLimits(-solenoidSumLimit, solenoidSumLimit)
	if cfg.DitherFreqHz > 0 {
		s.ditherMs = mathx.Clamp(1000/cfg.DitherFreqHz/2, 1, defaultDitherMaxMs)
	}
	s.ditherDelay.Init(s.ditherMs)
	return s
}

// Set sets the target, 0..1000. Its meaning depends on the mode.
func (s *SolenoidOutput) Set(target int32) {
	s.target = mathx.Clamp(target, 0, TargetMax)
}

// Step runs the base output checks and the regulation loop, then writes
// the duty cycle.
func (s *SolenoidOutput) Step(stepMs int32) {
	s.base.Step(stepMs)

	// with nothing requested and nothing flowing the output is off, which
	// also keeps open-load noise from tripping the limits
	if s.target == 0 && (s.pwm == 0 || s.base.Current() == 0) {
		s.base.SetState(StateOff)
	} else {
		s.base.SetState(StateOn)
	}

	if s.base.State() != StateOn {
		s.pid.Reset()
		s.duty = 0
		s.pwm = 0
		s.ditherSign = defaultDitherSign
		s.ditherDelay.Init(s.ditherMs)
	} else {
		if s.ditherMs > 0 && s.ditherDelay.Step(stepMs) {
			s.ditherSign = -s.ditherSign
			s.ditherDelay.Init(s.ditherMs)
		}
		var dither int32
		if s.target != 0 && s.mode != ModeOnOff {
			dither = s.ditherSign * s.ditherAmpl / 2
		}

		switch s.mode {
		case ModeCurrent:
			var ma int32
			if s.target != 0 {
				ma = mathx.Lerp(s.target, s.conf.MinMA, s.conf.MaxMA)
			}
			s.pid.SetGains(s.conf.CurrentP, s.conf.CurrentI, 0)
			s.pid.SetTarget(ma)
			s.pid.Step(stepMs, s.base.Current())
			s.duty = mathx.Clamp(s.duty+s.pid.Output(), 0, PWMMax)
		case ModePWM:
			s.duty = 0
			if s.target != 0 {
				s.duty = mathx.Clamp(mathx.Lerp(s.target, s.conf.MinPPT, s.conf.MaxPPT), 0, PWMMax)
			}
		case ModeOnOff:
			s.duty = 0
			if s.target != 0 {
				s.duty = PWMMax
			}
		}
		s.pwm = uint16(mathx.Clamp(s.duty+dither, 0, PWMMax))
	}

	if err := s.hw.SetPWM(s.pwmc, s.pwm); err != nil {
		s.err = fmt.Errorf("solenoid: %w", err)
	}
}

// SetMode changes the regulation mode and restarts the loop from zero duty.
func (s *SolenoidOutput) SetMode(m SolenoidMode) {
	if m == s.mode {
		return
	}
	s.mode = m
	s.pid.Reset()
	s.duty = 0
}

// Mode returns the regulation mode.
func (s *SolenoidOutput) Mode() SolenoidMode { return s.mode }

// Target returns the requested target.
func (s *SolenoidOutput) Target() int32 { return s.target }

// PWM returns the duty cycle written on the last Step.
func (s *SolenoidOutput) PWM() uint16 { return s.pwm }

// Conf returns the referenced configuration.
func (s *SolenoidOutput) Conf() *SolenoidOutputConf { return s.conf }

// Current returns the averaged current in mA.
func (s *SolenoidOutput) Current() int32 { return s.base.Current() }

// State returns the base output state.
func (s *SolenoidOutput) State() State { return s.base.State() }

// SetState forwards to the base output guard.
func (s *SolenoidOutput) SetState(st State) { s.base.SetState(st) }

// Enable leaves DISABLED.
func (s *SolenoidOutput) Enable() { s.base.Enable() }

// Disable enters DISABLED; the next Step writes zero duty.
func (s *SolenoidOutput) Disable() { s.base.Disable() }

// Base returns the underlying current-sensed output.
func (s *SolenoidOutput) Base() *Output { return s.base }

// DitherMs returns the dither half period.
func (s *SolenoidOutput) DitherMs() int32 { return s.ditherMs }

// Err returns the last hardware error from this output or its base.
func (s *SolenoidOutput) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.base.Err()
}

// Status implements Reporter.
func (s *SolenoidOutput) Status() Status {
	return Status{
		State:     s.base.State(),
		TargetReq: s.target,
		Target:    s.target,
		Current:   s.base.Current(),
		PWM:       s.pwm,
	}
}
