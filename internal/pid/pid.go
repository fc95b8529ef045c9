// Package pid implements the fixed-point PID controller used by the output
// regulation loops.
//
// The controller is incremental: Output is a correction the caller adds to
// its previous actuator value, never an absolute command. Gains are 8-bit
// integers in units of 1/Scale, and the proportional and derivative terms
// are normalised to DefStepMs so that gains tuned at a 20 ms cadence keep
// their meaning when the caller's step drifts.
//
// Not safe for concurrent use.
package pid

import "math"

const (
	// Scale is the fixed-point divisor applied to the summed terms.
	Scale = 0x100
	// DefStepMs is the cadence the gains are tuned for.
	DefStepMs = 20
)

// State is the controller run state.
type State int

const (
	StateOn State = iota
	StateOff
	// StateOffReq ramps the output to zero before switching off.
	StateOffReq
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "ON"
	case StateOff:
		return "OFF"
	case StateOffReq:
		return "OFF_REQ"
	}
	return "UNKNOWN"
}

// PID is a fixed-point controller.
type PID struct {
	p, i, d uint8

	sum    int64
	minSum int64
	maxSum int64

	input     int32
	haveInput bool
	target    int32
	output    int32
	state     State
}

// New returns a running controller with the given gains and an unlimited
// integral sum.
func New(p, i, d uint8) PID {
	return PID{
		p:      p,
		i:      i,
		d:      d,
		minSum: math.MinInt64 / 2,
		maxSum: math.MaxInt64 / 2,
		state:  StateOn,
	}
}

// Step advances the controller by stepMs with a new measurement.
func (c *PID) Step(stepMs int32, input int32) {
	if stepMs <= 0 {
		stepMs = 1
	}
	const def = DefStepMs

	switch c.state {
	case StateOff:
		c.output = 0
		c.sum = 0
		c.input = input
		c.haveInput = true
		return
	case StateOffReq:
		c.output -= c.output / 2
		if c.output >= -1 && c.output <= 1 {
			c.output = 0
			c.sum = 0
			c.state = StateOff
		}
		c.input = input
		c.haveInput = true
		return
	}

	err := int64(c.target) - int64(input)

	pTerm := err * int64(c.p) * int64(def) / int64(stepMs)

	c.sum += err * int64(c.i)
	if c.sum < c.minSum {
		c.sum = c.minSum
	} else if c.sum > c.maxSum {
		c.sum = c.maxSum
	}

	var dTerm int64
	if c.haveInput {
		// derivative on measurement avoids a kick when the target jumps
		dTerm = -int64(input-c.input) * int64(c.d) * int64(def) / int64(stepMs)
	}
	c.input = input
	c.haveInput = true

	out := (pTerm + c.sum + dTerm) / Scale
	if out > math.MaxInt32 {
		out = math.MaxInt32
	} else if out < math.MinInt32 {
		out = math.MinInt32
	}
	c.output = int32(out)
}

// Output returns the last computed correction.
func (c *PID) Output() int32 { return c.output }

// SetTarget sets the setpoint.
func (c *PID) SetTarget(target int32) { c.target = target }

// Target returns the setpoint.
func (c *PID) Target() int32 { return c.target }

// Reset clears the integral sum, output and derivative history.
func (c *PID) Reset() {
	c.sum = 0
	c.output = 0
	c.input = 0
	c.haveInput = false
}

// Enable switches the controller on.
func (c *PID) Enable() { c.state = StateOn }

// Disable requests a ramp-down; the controller turns off once the output
// reaches zero.
func (c *PID) Disable() {
	if c.state == StateOn {
		c.state = StateOffReq
	}
}

// State returns the run state.
func (c *PID) State() State { return c.state }

// SetGains updates P, I and D.
func (c *PID) SetGains(p, i, d uint8) {
	c.p, c.i, c.d = p, i, d
}

// SetP updates only the proportional gain.
func (c *PID) SetP(p uint8) { c.p = p }

// Gains returns P, I and D.
func (c *PID) Gains() (p, i, d uint8) { return c.p, c.i, c.d }

// SetSumLimits clamps the integral accumulator (in un-scaled units) to [min, max].
func (c *PID) SetSumLimits(min, max int64) {
	if max < min {
		min, max = max, min
	}
	c.minSum, c.maxSum = min, max
}
