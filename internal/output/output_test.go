package output

import (
	"errors"
	"testing"

	"github.com/sweeney/propvalve/internal/emcy"
	"github.com/sweeney/propvalve/internal/hal"
)

const (
	testADC   hal.Channel = 0
	testGate  hal.Pin     = 3
	testFault emcy.Code   = emcy.ClassCurrentOutput | 0x01
	testOver  emcy.Code   = emcy.ClassCurrentOutput | 0x02
)

func newTestOutput(t *testing.T) (*Output, *hal.FakePlatform, *emcy.Recorder) {
	t.Helper()
	hw := hal.NewFakePlatform()
	hw.SetADC(testADC, 0)
	rec := emcy.NewRecorder()
	o := NewOutput(Config{
		ADC:          testADC,
		Drive:        GateDrive(testGate),
		SenseAmpl:    1000,
		MaxMA:        1000,
		FaultMA:      2000,
		AvgCount:     1,
		EmcyOverload: testOver,
		EmcyFault:    testFault,
	}, hw, rec)
	return o, hw, rec
}

func TestNewOutputDrivesLow(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	if o.State() != StateOff {
		t.Errorf("expected OFF, got %s", o.State())
	}
	on, ok := hw.Gates[testGate]
	if !ok || on {
		t.Errorf("expected gate written low, got written=%v on=%v", ok, on)
	}
}

func TestOutputOnDrivesGate(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	hw.SetADC(testADC, 500)
	o.SetState(StateOn)
	o.Step(20)
	if o.State() != StateOn {
		t.Fatalf("expected ON, got %s", o.State())
	}
	if !hw.Gate(testGate) {
		t.Error("expected gate high while ON")
	}
	if o.Current() != 500 {
		t.Errorf("expected 500 mA, got %d", o.Current())
	}

	o.SetState(StateOff)
	o.Step(20)
	if hw.Gate(testGate) {
		t.Error("expected gate low while OFF")
	}
}

func TestOutputLimits(t *testing.T) {
	tests := []struct {
		name      string
		adc       int16
		wantState State
		wantCode  emcy.Code
	}{
		{"within limits", 900, StateOn, 0},
		{"overload", 1500, StateOverload, testOver},
		{"fault wins over overload", 2500, StateFault, testFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, hw, rec := newTestOutput(t)
			hw.SetADC(testADC, tt.adc)
			o.SetState(StateOn)
			o.Step(20)
			o.Step(20)

			if o.State() != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, o.State())
			}
			if tt.wantCode == 0 {
				if rec.Len() != 0 {
					t.Errorf("expected no EMCY, got %v", rec.Codes)
				}
				return
			}
			if hw.Gate(testGate) {
				t.Error("expected gate low after trip")
			}
			if n := rec.Count(tt.wantCode); n != 1 {
				t.Errorf("expected EMCY %v once, got %d", tt.wantCode, n)
			}
			if rec.Len() != 1 {
				t.Errorf("expected exactly one EMCY, got %v", rec.Codes)
			}
		})
	}
}

func TestOutputStateGuard(t *testing.T) {
	for _, trip := range []State{StateFault, StateOverload} {
		t.Run(string(trip), func(t *testing.T) {
			o, _, _ := newTestOutput(t)
			o.SetState(StateOn)
			o.SetState(trip)

			for _, s := range []State{StateOn, StateFault, StateOverload, StateDisabled, trip} {
				o.SetState(s)
				if o.State() != trip {
					t.Fatalf("SetState(%s) from %s changed state to %s", s, trip, o.State())
				}
			}

			o.SetState(StateOff)
			if o.State() != StateOff {
				t.Errorf("expected OFF after clear, got %s", o.State())
			}
		})
	}
}

func TestOutputNeverSelfClears(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	hw.SetADC(testADC, 2500)
	o.SetState(StateOn)
	o.Step(20)
	hw.SetADC(testADC, 0)
	for i := 0; i < 50; i++ {
		o.Step(20)
	}
	if o.State() != StateFault {
		t.Errorf("expected FAULT to persist, got %s", o.State())
	}
}

func TestOutputDisableEnable(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	hw.SetADC(testADC, 100)
	o.SetState(StateOn)
	o.Step(20)

	o.Disable()
	if o.State() != StateDisabled {
		t.Fatalf("expected DISABLED, got %s", o.State())
	}
	if hw.Gate(testGate) {
		t.Error("expected gate low when disabled")
	}

	o.SetState(StateOn)
	o.SetState(StateOff)
	if o.State() != StateDisabled {
		t.Errorf("DISABLED left through SetState, got %s", o.State())
	}

	o.Enable()
	if o.State() != StateOff {
		t.Errorf("expected OFF after Enable, got %s", o.State())
	}
	o.Enable()
	if o.State() != StateOff {
		t.Errorf("Enable outside DISABLED changed state to %s", o.State())
	}
}

func TestOutputDisableFromFault(t *testing.T) {
	o, _, _ := newTestOutput(t)
	o.SetState(StateOn)
	o.SetState(StateFault)
	o.Disable()
	if o.State() != StateDisabled {
		t.Errorf("expected Disable to override FAULT, got %s", o.State())
	}
}

func TestOutputMinCurrent(t *testing.T) {
	o, _, rec := newTestOutput(t)
	o.SetMinCurrent(100)
	o.SetState(StateOn)

	// settle window is MinCurrentSettleMs
	for i := 0; i < MinCurrentSettleMs/20-1; i++ {
		o.Step(20)
		if o.State() != StateOn {
			t.Fatalf("step %d: open load tripped inside settle window", i)
		}
	}
	o.Step(20)
	if o.State() != StateFault {
		t.Fatalf("expected FAULT on open load, got %s", o.State())
	}
	if rec.Count(testFault) != 1 {
		t.Errorf("expected one fault EMCY, got %v", rec.Codes)
	}
}

func TestOutputADCErrorFaults(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	o.SetState(StateOn)
	hw.ADCError = errors.New("bus error")
	o.Step(20)
	if o.State() != StateFault {
		t.Errorf("expected FAULT on lost sensing, got %s", o.State())
	}
	if o.Err() == nil {
		t.Error("expected Err to report the ADC error")
	}
}

func TestOutputDisabledLimits(t *testing.T) {
	hw := hal.NewFakePlatform()
	hw.SetADC(testADC, 30000)
	o := NewOutput(Config{ADC: testADC, Drive: GateDrive(testGate), SenseAmpl: 1000, AvgCount: 1}, hw, nil)
	o.SetState(StateOn)
	o.Step(20)
	if o.State() != StateOn {
		t.Errorf("zero limits must not trip, got %s", o.State())
	}
}

func TestOutputNegativeCurrentClamped(t *testing.T) {
	o, hw, _ := newTestOutput(t)
	hw.SetADC(testADC, -300)
	o.Step(20)
	if o.Current() != 0 {
		t.Errorf("expected negative sample clamped to 0, got %d", o.Current())
	}
}

func TestPWMDriveOnlyForcesZero(t *testing.T) {
	hw := hal.NewFakePlatform()
	hw.SetADC(testADC, 100)
	o := NewOutput(Config{ADC: testADC, Drive: PWMDrive(5), SenseAmpl: 1000, AvgCount: 1}, hw, nil)
	hw.Writes = nil
	o.SetState(StateOn)
	o.Step(20)
	if len(hw.Writes) != 0 {
		t.Errorf("expected no PWM writes while ON, got %v", hw.Writes)
	}
	o.SetState(StateOff)
	o.Step(20)
	if len(hw.Writes) != 1 || hw.Writes[0].Duty != 0 {
		t.Errorf("expected a single zero write while OFF, got %v", hw.Writes)
	}
}
