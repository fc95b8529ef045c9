// Package output contains the closed-loop power output controllers: a
// current-sensed base output, a dithered milliamp-regulated solenoid, a
// bidirectional dual solenoid, a proportional/on-off output with toggle
// logic and a PWM voltage reference.
//
// Every controller is advanced by Step at a fixed cadence from a single
// goroutine. Step never blocks and never returns an error: faults surface
// as state transitions and EMCY codes. Not safe for concurrent use.
package output

import "github.com/sweeney/propvalve/internal/hal"

// State is the logical state of an output.
type State string

const (
	StateOff      State = "OFF"
	StateOn       State = "ON"
	StateOverload State = "OVERLOAD"
	StateFault    State = "FAULT"
	StateDisabled State = "DISABLED"
)

func (s State) String() string { return string(s) }

// Terminal reports whether s is a state that zeroes the drive and only
// leaves through an explicit request.
func (s State) Terminal() bool {
	return s == StateFault || s == StateOverload || s == StateDisabled
}

// Target limits, in ppt.
const (
	TargetMax = 1000
	TargetMin = -1000
)

// PWMMax is full scale duty cycle.
const PWMMax = hal.PWMMax

// Status is a point-in-time view of any output, for reporting.
type Status struct {
	State     State
	TargetReq int32
	Target    int32
	Current   int32
	PWM       uint16
}

// Reporter is implemented by every output kind.
type Reporter interface {
	Status() Status
}

// Actuator accepts a signed target in ppt. DualSolenoidOutput satisfies it.
type Actuator interface {
	Set(target int32)
}

// guardTransition applies the state guard shared by all outputs: from
// FAULT or OVERLOAD only OFF is accepted, DISABLED is left only via Enable.
func guardTransition(cur, next State) bool {
	if cur == next {
		return false
	}
	switch cur {
	case StateFault, StateOverload:
		return next == StateOff
	case StateDisabled:
		return false
	}
	return true
}
