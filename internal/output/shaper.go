package output

import (
	"github.com/sweeney/propvalve/internal/filter"
	"github.com/sweeney/propvalve/internal/mathx"
	"github.com/sweeney/propvalve/internal/pid"
)

// Target shaping constants.
const (
	// TargetDelayMs is the shaping update period.
	TargetDelayMs = 20
	// PIDMultiplier is the extra precision of the shaped target.
	PIDMultiplier = 1000
	// PIDPMax is the shaping P gain at 100 % acceleration.
	PIDPMax = 255
)

// shapingP maps an acc/dec percentage to the shaping P gain. The quadratic
// curve is tuned by hand; keep the constants.
func shapingP(factor int32) uint8 {
	factor = mathx.Clamp(factor, 0, 100)
	p := PIDPMax * factor * factor / 10000
	if p < 1 {
		p = 1
	}
	return uint8(p)
}

// shaper rate-limits a signed target toward a request using a P-only PID
// whose gain depends on whether the magnitude grows or shrinks.
type shaper struct {
	pid        pid.PID
	delay      filter.Delay
	targetMult int32
	target     int32
}

func newShaper() shaper {
	return shaper{
		pid:   pid.New(1, 0, 0),
		delay: filter.NewDelay(TargetDelayMs),
	}
}

// step advances the shaping by stepMs. acc and dec must already be clamped
// to 0..100. With bypass set the target follows req directly.
func (s *shaper) step(stepMs, req, acc, dec int32, bypass bool) int32 {
	if !s.delay.Step(stepMs) {
		return s.target
	}
	s.delay.Init(TargetDelayMs)

	req = mathx.Clamp(req, TargetMin, TargetMax)
	if bypass || (acc == 100 && dec == 100) {
		s.snap(req)
		return s.target
	}

	accelerating := mathx.Abs(req) > mathx.Abs(s.target) &&
		(s.target == 0 || mathx.Sign(req) == mathx.Sign(s.target))
	factor := dec
	if accelerating {
		factor = acc
	}

	s.pid.SetP(shapingP(factor))
	s.pid.SetTarget(req * PIDMultiplier)
	s.pid.Step(TargetDelayMs, s.targetMult)
	out := s.pid.Output()
	if out == 0 {
		// settled: drop the residual error below one P step
		s.targetMult = req * PIDMultiplier
	} else {
		s.targetMult = mathx.Clamp(s.targetMult+out, TargetMin*PIDMultiplier, TargetMax*PIDMultiplier)
	}
	s.target = s.targetMult / PIDMultiplier
	return s.target
}

func (s *shaper) snap(target int32) {
	s.target = target
	s.targetMult = target * PIDMultiplier
	s.pid.Reset()
}

// reset zeroes the shaped target and restarts the update period.
func (s *shaper) reset() {
	s.snap(0)
	s.delay.Init(TargetDelayMs)
}
