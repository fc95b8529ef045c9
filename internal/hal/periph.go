package hal

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DutyToPeriph converts a ppt duty cycle to periph's fixed-point duty.
func DutyToPeriph(duty uint16) gpio.Duty {
	if duty > PWMMax {
		duty = PWMMax
	}
	return gpio.Duty(int64(duty) * int64(gpio.DutyMax) / PWMMax)
}

// PeriphPWM drives PWM channels through periph.io pins.
type PeriphPWM struct {
	freq physic.Frequency
	pins map[Channel]gpio.PinOut
}

// NewPeriphPWM creates a PWM driver running every pin at freq.
func NewPeriphPWM(freq physic.Frequency) *PeriphPWM {
	return &PeriphPWM{freq: freq, pins: make(map[Channel]gpio.PinOut)}
}

// Attach maps ch to pin.
func (p *PeriphPWM) Attach(ch Channel, pin gpio.PinOut) {
	p.pins[ch] = pin
}

// SetPWM writes duty (ppt) to the pin behind ch.
func (p *PeriphPWM) SetPWM(ch Channel, duty uint16) error {
	pin, ok := p.pins[ch]
	if !ok {
		return fmt.Errorf("set pwm %d: %w", ch, ErrUnknownChannel)
	}
	if duty == 0 {
		// a plain low level is glitch-free on every driver
		if err := pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("set pwm %d: %w", ch, err)
		}
		return nil
	}
	if err := pin.PWM(DutyToPeriph(duty), p.freq); err != nil {
		return fmt.Errorf("set pwm %d: %w", ch, err)
	}
	return nil
}

// Halt drives every PWM pin low.
func (p *PeriphPWM) Halt() error {
	var errs []error
	for ch, pin := range p.pins {
		if err := pin.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("halt pwm %d: %w", ch, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("halt errors: %v", errs)
	}
	return nil
}

// PeriphADC reads samples from periph.io analog pins.
type PeriphADC struct {
	pins map[Channel]analog.PinADC
}

// NewPeriphADC creates an empty ADC mapping.
func NewPeriphADC() *PeriphADC {
	return &PeriphADC{pins: make(map[Channel]analog.PinADC)}
}

// Attach maps ch to pin.
func (a *PeriphADC) Attach(ch Channel, pin analog.PinADC) {
	a.pins[ch] = pin
}

// ReadADC returns the raw converter count for ch, saturated to int16.
func (a *PeriphADC) ReadADC(ch Channel) (int16, error) {
	pin, ok := a.pins[ch]
	if !ok {
		return 0, fmt.Errorf("read adc %d: %w", ch, ErrUnknownChannel)
	}
	s, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read adc %d: %w", ch, err)
	}
	raw := s.Raw
	if raw > 32767 {
		raw = 32767
	} else if raw < -32768 {
		raw = -32768
	}
	return int16(raw), nil
}

// Halt releases every analog pin.
func (a *PeriphADC) Halt() error {
	var errs []error
	for ch, pin := range a.pins {
		if err := pin.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt adc %d: %w", ch, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("halt errors: %v", errs)
	}
	return nil
}
