package hal

// Plant is a first-order lag model of something driven by PWM and measured
// by an ADC: a solenoid coil (mA) or an RC-filtered reference (mV).
type Plant struct {
	// Inputs are the PWM channels feeding the plant; their duties add up.
	Inputs []Channel
	// Sense is the ADC channel the plant drives.
	Sense Channel
	// FullScale is the settled value at PWMMax duty.
	FullScale int32
	// TauMs is the time constant. Zero settles instantly.
	TauMs int32
	// Invert models an inverting output stage (duty 0 gives full scale).
	Invert bool
	// SenseAmpl converts ADC counts to the plant unit: value = adc*SenseAmpl/1000.
	SenseAmpl int32

	value int64 // fixed point, x1000
}

// Value returns the current plant output.
func (p *Plant) Value() int32 { return int32(p.value / 1000) }

// Step advances the plant by stepMs using the duties last written to f
// and publishes the sample on the sense channel.
func (p *Plant) Step(f *FakePlatform, stepMs int32) {
	var duty int32
	for _, ch := range p.Inputs {
		duty += int32(f.DutyOf(ch))
	}
	if duty > PWMMax {
		duty = PWMMax
	}
	if p.Invert {
		duty = PWMMax - duty
	}
	settled := int64(duty) * int64(p.FullScale) // x1000 since duty is ppt
	if p.TauMs <= 0 {
		p.value = settled
	} else {
		p.value += (settled - p.value) * int64(stepMs) / int64(p.TauMs+stepMs)
	}
	ampl := p.SenseAmpl
	if ampl <= 0 {
		ampl = 1000
	}
	adc := p.value / int64(ampl)
	if adc > 32767 {
		adc = 32767
	}
	f.SetADC(p.Sense, int16(adc))
}

// Sim is a FakePlatform with plants stepped by the caller.
type Sim struct {
	*FakePlatform
	Plants []*Plant
}

// NewSim creates a simulator over a fresh FakePlatform.
func NewSim(plants ...*Plant) *Sim {
	s := &Sim{FakePlatform: NewFakePlatform(), Plants: plants}
	for _, p := range plants {
		s.SetADC(p.Sense, 0)
	}
	return s
}

// Step advances all plants.
func (s *Sim) Step(stepMs int32) {
	for _, p := range s.Plants {
		p.Step(s.FakePlatform, stepMs)
	}
}
