package hal

import (
	"errors"
	"testing"
)

func TestFakePlatformADC(t *testing.T) {
	f := NewFakePlatform()
	f.SetADC(2, 1234)

	v, err := f.ReadADC(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1234 {
		t.Errorf("ReadADC = %d, want 1234", v)
	}

	if _, err := f.ReadADC(7); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestFakePlatformADCFunc(t *testing.T) {
	f := NewFakePlatform()
	f.ADCFunc = func(ch Channel) int16 { return int16(ch) * 10 }

	v, err := f.ReadADC(3)
	if err != nil || v != 30 {
		t.Errorf("ReadADC = %d, %v; want 30, nil", v, err)
	}
}

func TestFakePlatformErrors(t *testing.T) {
	f := NewFakePlatform()
	f.ADCError = errors.New("adc down")
	f.PWMError = errors.New("pwm down")
	f.GPIOError = errors.New("gpio down")

	if _, err := f.ReadADC(0); err == nil {
		t.Error("expected adc error")
	}
	if err := f.SetPWM(0, 1); err == nil {
		t.Error("expected pwm error")
	}
	if err := f.SetGPIO(0, true); err == nil {
		t.Error("expected gpio error")
	}
	if len(f.Writes) != 0 {
		t.Error("failed writes must not be recorded")
	}
}

func TestFakePlatformRecordsWrites(t *testing.T) {
	f := NewFakePlatform()
	f.SetPWM(1, 100)
	f.SetPWM(2, 0)
	f.SetPWM(1, 250)
	f.SetGPIO(4, true)

	if f.DutyOf(1) != 250 || f.DutyOf(2) != 0 {
		t.Errorf("unexpected duties: %v", f.Duty)
	}
	if len(f.Writes) != 3 || f.Writes[2] != (PWMWrite{Channel: 1, Duty: 250}) {
		t.Errorf("unexpected writes: %v", f.Writes)
	}
	if !f.Gate(4) {
		t.Error("expected gate 4 on")
	}
	if err := f.SetPWM(1, PWMMax+1); err == nil {
		t.Error("expected out of range error")
	}

	f.Reset()
	if len(f.Writes) != 0 || f.Gate(4) {
		t.Error("Reset did not clear state")
	}
}

func TestBoardComposesParts(t *testing.T) {
	f := NewFakePlatform()
	var p Platform = Board{ADC: f, PWM: f, GPIO: f}
	if err := p.SetPWM(0, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.DutyOf(0) != 10 {
		t.Error("board did not forward PWM")
	}
}

func TestPlantSettles(t *testing.T) {
	p := &Plant{Inputs: []Channel{0}, Sense: 1, FullScale: 4000, TauMs: 40, SenseAmpl: 1000}
	s := NewSim(p)
	s.SetPWM(0, 500)
	for i := 0; i < 100; i++ {
		s.Step(20)
	}
	if got := p.Value(); got < 1995 || got > 2000 {
		t.Errorf("plant value = %d, want ~2000", got)
	}
	v, _ := s.ReadADC(1)
	if v < 1995 || v > 2000 {
		t.Errorf("sense = %d, want ~2000", v)
	}
}

func TestPlantInvertAndSum(t *testing.T) {
	p := &Plant{Inputs: []Channel{0, 1}, Sense: 2, FullScale: 5000, Invert: true, SenseAmpl: 2000}
	s := NewSim(p)
	s.SetPWM(0, 100)
	s.SetPWM(1, 100)
	s.Step(20)
	if got := p.Value(); got != 4000 {
		t.Errorf("plant value = %d, want 4000", got)
	}
	v, _ := s.ReadADC(2)
	if v != 2000 {
		t.Errorf("sense = %d, want 2000 counts", v)
	}
}
