//go:build linux

package hal

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GateGPIO drives output gates through the Linux GPIO character device.
type GateGPIO struct {
	chip  *gpiocdev.Chip
	lines map[Pin]*gpiocdev.Line
}

// NewGateGPIO requests each pin on chipName as an output driven low.
func NewGateGPIO(chipName string, pins ...Pin) (*GateGPIO, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	g := &GateGPIO{chip: chip, lines: make(map[Pin]*gpiocdev.Line, len(pins))}
	for _, pin := range pins {
		if pin == NoPin {
			continue
		}
		line, err := chip.RequestLine(int(pin), gpiocdev.AsOutput(0), gpiocdev.WithConsumer("valve-driver"))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request gate pin %d: %w", pin, err)
		}
		g.lines[pin] = line
	}
	return g, nil
}

// SetGPIO drives pin high (on) or low.
func (g *GateGPIO) SetGPIO(pin Pin, on bool) error {
	line, ok := g.lines[pin]
	if !ok {
		return fmt.Errorf("set gate %d: %w", pin, ErrUnknownChannel)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set gate %d: %w", pin, err)
	}
	return nil
}

// Close drives every gate low and releases the lines.
func (g *GateGPIO) Close() error {
	var errs []error

	for pin, line := range g.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive gate %d low: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gate %d: %w", pin, err))
		}
	}
	g.lines = nil
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		g.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
