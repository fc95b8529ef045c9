package main

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/sweeney/propvalve/internal/hal"
)

// Plant indexes in the simulator.
const (
	plantValve = iota
	plantCoil
	plantRef
)

// Simulated plant parameters.
const (
	simCoilFullScaleMA = 2000
	simCoilTauMs       = 40
	simRefTauMs        = 10
)

// newSimPlatform returns a simulator with first-order coil and reference
// plants wired to the daemon's channels.
func newSimPlatform(vddMV int32) *hal.Sim {
	sim := hal.NewSim(
		&hal.Plant{Inputs: []hal.Channel{pwmValveA, pwmValveB}, Sense: adcValve, FullScale: simCoilFullScaleMA, TauMs: simCoilTauMs, SenseAmpl: senseAmpl},
		&hal.Plant{Inputs: []hal.Channel{pwmCoil}, Sense: adcCoil, FullScale: simCoilFullScaleMA, TauMs: simCoilTauMs, SenseAmpl: senseAmpl},
		&hal.Plant{Inputs: []hal.Channel{pwmRef}, Sense: adcRef, FullScale: vddMV, TauMs: simRefTauMs, Invert: true, SenseAmpl: senseAmpl},
	)
	sim.SetADC(adcAux, 0)
	return sim
}

// hardware describes the real board wiring.
type hardware struct {
	i2cBus    string
	gpioChip  string
	auxGate   hal.Pin
	pwmFreqHz int
	pwmPins   map[hal.Channel]string
}

// newRealPlatform initialises periph.io, the ADS1115 sense converter, the
// host PWM pins and the gate lines. The returned func releases everything
// and leaves all outputs low.
func newRealPlatform(hw hardware) (hal.Platform, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(hw.i2cBus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", hw.i2cBus, err)
	}

	conv, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("init ads1115: %w", err)
	}

	adc := hal.NewPeriphADC()
	inputs := map[hal.Channel]ads1x15.Channel{
		adcValve: ads1x15.Channel0,
		adcCoil:  ads1x15.Channel1,
		adcRef:   ads1x15.Channel2,
		adcAux:   ads1x15.Channel3,
	}
	for ch, in := range inputs {
		pin, err := conv.PinForChannel(in, 4096*physic.MilliVolt, 475*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			adc.Halt()
			bus.Close()
			return nil, nil, fmt.Errorf("ads1115 channel %d: %w", ch, err)
		}
		adc.Attach(ch, pin)
	}

	pwm := hal.NewPeriphPWM(physic.Frequency(hw.pwmFreqHz) * physic.Hertz)
	for ch, name := range hw.pwmPins {
		p := gpioreg.ByName(name)
		if p == nil {
			adc.Halt()
			bus.Close()
			return nil, nil, fmt.Errorf("pwm channel %d: no pin %q", ch, name)
		}
		if err := p.Out(gpio.Low); err != nil {
			adc.Halt()
			bus.Close()
			return nil, nil, fmt.Errorf("pwm channel %d: drive %s low: %w", ch, name, err)
		}
		pwm.Attach(ch, p)
	}

	gates, err := hal.NewGateGPIO(hw.gpioChip, hw.auxGate)
	if err != nil {
		pwm.Halt()
		adc.Halt()
		bus.Close()
		return nil, nil, fmt.Errorf("init gates: %w", err)
	}

	release := func() error {
		var errs []error
		if err := pwm.Halt(); err != nil {
			errs = append(errs, err)
		}
		if err := gates.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := adc.Halt(); err != nil {
			errs = append(errs, err)
		}
		if err := bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("release errors: %v", errs)
		}
		return nil
	}
	return hal.Board{ADC: adc, PWM: pwm, GPIO: gates}, release, nil
}
