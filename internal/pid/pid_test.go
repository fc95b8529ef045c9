package pid

import "testing"

// plant integrates the controller output like an actuator duty cycle with a
// linear gain of k current units per duty unit.
func runLoop(c *PID, target, k int32, steps int) (duty, measured int32) {
	c.SetTarget(target)
	for i := 0; i < steps; i++ {
		measured = duty * k
		c.Step(DefStepMs, measured)
		duty += c.Output()
	}
	return duty, duty * k
}

func TestProportionalOutput(t *testing.T) {
	c := New(128, 0, 0)
	c.SetTarget(100)
	c.Step(DefStepMs, 40)
	if got := c.Output(); got != 30 {
		t.Errorf("Output() = %d, want 30", got)
	}
}

func TestStepRateScaling(t *testing.T) {
	c := New(128, 0, 0)
	c.SetTarget(100)
	c.Step(DefStepMs/2, 0)
	if got := c.Output(); got != 100 {
		t.Errorf("half step should double P: Output() = %d, want 100", got)
	}
	c.Step(DefStepMs*2, 0)
	if got := c.Output(); got != 25 {
		t.Errorf("double step should halve P: Output() = %d, want 25", got)
	}
}

func TestIncrementalConverges(t *testing.T) {
	c := New(30, 1, 0)
	_, measured := runLoop(&c, 2000, 4, 400)
	if measured < 1990 || measured > 2010 {
		t.Errorf("measured = %d, want 2000 +-10", measured)
	}
}

func TestIntegralClamp(t *testing.T) {
	c := New(0, 10, 0)
	c.SetSumLimits(-500, 500)
	c.SetTarget(1000)
	for i := 0; i < 100; i++ {
		c.Step(DefStepMs, 0)
	}
	if c.sum != 500 {
		t.Errorf("sum = %d, want clamp at 500", c.sum)
	}
}

func TestDerivativeOnMeasurement(t *testing.T) {
	c := New(0, 0, 128)
	c.SetTarget(0)
	c.Step(DefStepMs, 0)
	if c.Output() != 0 {
		t.Fatalf("first step has no derivative history, got %d", c.Output())
	}
	c.SetTarget(5000)
	c.Step(DefStepMs, 10)
	if got := c.Output(); got != -5 {
		t.Errorf("Output() = %d, want -5 (no target kick)", got)
	}
}

func TestDisableRampsToOff(t *testing.T) {
	c := New(128, 0, 0)
	c.SetTarget(2000)
	c.Step(DefStepMs, 0)
	if c.Output() != 1000 {
		t.Fatalf("Output() = %d, want 1000", c.Output())
	}
	c.Disable()
	if c.State() != StateOffReq {
		t.Fatalf("State() = %v, want OFF_REQ", c.State())
	}
	prev := c.Output()
	for i := 0; i < 50 && c.State() != StateOff; i++ {
		c.Step(DefStepMs, 0)
		if c.Output() > prev {
			t.Fatalf("output grew while ramping down: %d > %d", c.Output(), prev)
		}
		prev = c.Output()
	}
	if c.State() != StateOff || c.Output() != 0 {
		t.Errorf("expected OFF with zero output, got %v / %d", c.State(), c.Output())
	}
	c.Step(DefStepMs, 123)
	if c.Output() != 0 {
		t.Errorf("OFF controller produced %d", c.Output())
	}
	c.Enable()
	c.Step(DefStepMs, 0)
	if c.Output() != 1000 {
		t.Errorf("re-enabled Output() = %d, want 1000", c.Output())
	}
}

func TestReset(t *testing.T) {
	c := New(10, 10, 10)
	c.SetTarget(100)
	c.Step(DefStepMs, 0)
	c.Reset()
	if c.Output() != 0 || c.sum != 0 || c.haveInput {
		t.Error("Reset did not clear state")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{StateOn: "ON", StateOff: "OFF", StateOffReq: "OFF_REQ", State(9): "UNKNOWN"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
