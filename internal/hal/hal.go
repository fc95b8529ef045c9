// Package hal provides the platform primitives the output control loops
// need: ADC samples, PWM duty cycles and digital gate outputs.
// The real implementations use the Linux GPIO character device and periph.io.
// The fake implementation allows testing without hardware.
package hal

import "errors"

// Channel identifies an ADC or PWM channel.
type Channel int

// Pin identifies a digital output line.
type Pin int

// NoChannel marks an unused ADC or PWM channel.
const NoChannel Channel = -1

// NoPin marks an unused gate output.
const NoPin Pin = -1

// PWMMax is full scale duty cycle, in parts per thousand.
const PWMMax = 1000

// ErrUnknownChannel is returned for channels the platform was not set up with.
var ErrUnknownChannel = errors.New("hal: unknown channel")

// ADC reads raw converter samples.
type ADC interface {
	ReadADC(ch Channel) (int16, error)
}

// PWM sets duty cycles in parts per thousand.
type PWM interface {
	SetPWM(ch Channel, duty uint16) error
}

// GPIO drives digital outputs.
type GPIO interface {
	SetGPIO(pin Pin, on bool) error
}

// Platform is everything an output needs from the hardware.
type Platform interface {
	ADC
	PWM
	GPIO
}

// Board assembles a Platform from independent parts, so ADC, PWM and GPIO
// can come from different drivers.
type Board struct {
	ADC
	PWM
	GPIO
}
