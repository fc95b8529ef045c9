//go:build !linux

package hal

import "errors"

// GateGPIO is not available on non-Linux platforms.
type GateGPIO struct{}

// NewGateGPIO returns an error on non-Linux platforms.
func NewGateGPIO(chipName string, pins ...Pin) (*GateGPIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetGPIO is not implemented on non-Linux platforms.
func (g *GateGPIO) SetGPIO(pin Pin, on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (g *GateGPIO) Close() error {
	return nil
}
