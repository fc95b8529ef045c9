package hal

import (
	"fmt"
	"sync"
)

// PWMWrite is one recorded duty cycle write.
type PWMWrite struct {
	Channel Channel
	Duty    uint16
}

// FakePlatform is a test double that records outputs and returns scripted
// or computed ADC samples.
type FakePlatform struct {
	mu sync.Mutex

	// ADCValues holds the sample returned for each channel.
	ADCValues map[Channel]int16

	// ADCFunc, if set, computes samples instead of ADCValues.
	ADCFunc func(ch Channel) int16

	// Duty is the last duty written per channel.
	Duty map[Channel]uint16

	// Gates is the last level written per pin.
	Gates map[Pin]bool

	// Writes records every PWM write in order.
	Writes []PWMWrite

	// ADCError, PWMError and GPIOError, if set, are returned by the matching call.
	ADCError  error
	PWMError  error
	GPIOError error
}

// NewFakePlatform creates an empty FakePlatform.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		ADCValues: make(map[Channel]int16),
		Duty:      make(map[Channel]uint16),
		Gates:     make(map[Pin]bool),
	}
}

// ReadADC returns the scripted or computed sample for ch.
func (f *FakePlatform) ReadADC(ch Channel) (int16, error) {
	f.mu.Lock()
	fn := f.ADCFunc
	if f.ADCError != nil {
		err := f.ADCError
		f.mu.Unlock()
		return 0, err
	}
	v, ok := f.ADCValues[ch]
	f.mu.Unlock()

	if fn != nil {
		return fn(ch), nil
	}
	if !ok {
		return 0, fmt.Errorf("read adc %d: %w", ch, ErrUnknownChannel)
	}
	return v, nil
}

// SetPWM records the duty cycle.
func (f *FakePlatform) SetPWM(ch Channel, duty uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PWMError != nil {
		return f.PWMError
	}
	if duty > PWMMax {
		return fmt.Errorf("set pwm %d: duty %d out of range", ch, duty)
	}
	f.Duty[ch] = duty
	f.Writes = append(f.Writes, PWMWrite{Channel: ch, Duty: duty})
	return nil
}

// SetGPIO records the gate level.
func (f *FakePlatform) SetGPIO(pin Pin, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GPIOError != nil {
		return f.GPIOError
	}
	f.Gates[pin] = on
	return nil
}

// SetADC sets the sample returned for ch.
func (f *FakePlatform) SetADC(ch Channel, v int16) {
	f.mu.Lock()
	f.ADCValues[ch] = v
	f.mu.Unlock()
}

// DutyOf returns the last duty written to ch.
func (f *FakePlatform) DutyOf(ch Channel) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Duty[ch]
}

// Gate returns the last level written to pin.
func (f *FakePlatform) Gate(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Gates[pin]
}

// Reset clears recorded writes and errors.
func (f *FakePlatform) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ADCValues = make(map[Channel]int16)
	f.Duty = make(map[Channel]uint16)
	f.Gates = make(map[Pin]bool)
	f.Writes = nil
	f.ADCFunc = nil
	f.ADCError = nil
	f.PWMError = nil
	f.GPIOError = nil
}
