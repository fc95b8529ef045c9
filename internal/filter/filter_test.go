package filter

import "testing"

func TestMovingAverageConverges(t *testing.T) {
	tests := []struct {
		name  string
		count int32
		v     int32
	}{
		{"positive", 10, 2000},
		{"negative", 8, -1234},
		{"single", 1, 77},
		{"odd", 7, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMovingAverage(tt.count)
			for i := int32(0); i < tt.count*3; i++ {
				m.Step(tt.v)
			}
			if got := m.Val(); got != tt.v {
				t.Errorf("Val() = %d, want %d", got, tt.v)
			}
			if m.curCount > m.count {
				t.Errorf("curCount %d exceeds count %d", m.curCount, m.count)
			}
		})
	}
}

func TestMovingAverageFromPreviousLevel(t *testing.T) {
	m := NewMovingAverage(5)
	for i := 0; i < 20; i++ {
		m.Step(1000)
	}
	for i := 0; i < 200; i++ {
		m.Step(500)
	}
	if got := m.Val(); got < 499 || got > 501 {
		t.Errorf("Val() = %d, want 500 +-1", got)
	}
}

func TestMovingAveragePartialWindow(t *testing.T) {
	m := NewMovingAverage(4)
	m.Step(100)
	if got := m.Step(300); got != 200 {
		t.Errorf("mean of two samples = %d, want 200", got)
	}
}

func TestMovingAverageReset(t *testing.T) {
	m := NewMovingAverage(4)
	m.Step(100)
	m.Step(100)
	m.Reset()
	if m.Val() != 0 {
		t.Errorf("Val() after reset = %d, want 0", m.Val())
	}
	if m.Count() != 4 {
		t.Errorf("Count() after reset = %d, want 4", m.Count())
	}
}

func TestMovingAverageZeroCount(t *testing.T) {
	var m MovingAverage
	if got := m.Step(42); got != 42 {
		t.Errorf("zero-value filter Step = %d, want 42", got)
	}
}

func TestHysteresisNoChatter(t *testing.T) {
	h := NewHysteresis(500, 50, false)
	h.Step(600)
	if !h.Result() {
		t.Fatal("expected true above trigger+hysteresis")
	}
	for _, v := range []int32{450, 549, 451, 500, 550, 450} {
		if !h.Step(v) {
			t.Fatalf("result flipped inside band at %d", v)
		}
	}
	if h.Step(449) {
		t.Error("expected false below trigger-hysteresis")
	}
	for _, v := range []int32{450, 550, 500} {
		if h.Step(v) {
			t.Fatalf("result flipped inside band at %d", v)
		}
	}
}

func TestHysteresisInvert(t *testing.T) {
	h := NewHysteresis(100, 10, true)
	if h.Step(95) {
		t.Error("inside band should keep initial false")
	}
	if !h.Step(89) {
		t.Error("expected true below band when inverted")
	}
	if !h.Step(110) {
		t.Error("band edge should not flip")
	}
	if h.Step(111) {
		t.Error("expected false above band when inverted")
	}
}

func TestHysteresisReset(t *testing.T) {
	h := NewHysteresis(0, 0, false)
	h.Step(1)
	h.Reset()
	if h.Result() {
		t.Error("expected false after reset")
	}
}

func TestDelay(t *testing.T) {
	d := NewDelay(100)
	fired := 0
	for i := 0; i < 10; i++ {
		if d.Step(20) {
			fired++
			if i != 4 {
				t.Errorf("expired at step %d, want 4", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("fired %d times, want 1", fired)
	}
	if !d.HasEnded() {
		t.Error("expected HasEnded after expiry")
	}
}

func TestDelayZero(t *testing.T) {
	d := NewDelay(0)
	if d.HasEnded() {
		t.Error("armed zero delay should not be ended before Step")
	}
	if !d.Step(20) {
		t.Error("zero delay should expire on first step")
	}
}

func TestDelayEnd(t *testing.T) {
	d := NewDelay(1000)
	d.End()
	if !d.HasEnded() {
		t.Error("expected ended")
	}
	if d.Step(20) {
		t.Error("ended delay should not report expiry")
	}
	var zero Delay
	if !zero.HasEnded() {
		t.Error("zero value should be ended")
	}
}
