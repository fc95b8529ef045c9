// Package filter contains the small stateful signal helpers used by the output
// control loops: a fixed-point moving average, a hysteresis comparator and a
// millisecond countdown. None of them allocate or block; all are advanced by
// the caller.
package filter

// AverageScale is the fixed-point multiplier kept inside MovingAverage.
const AverageScale = 1000

// MovingAverage is a running mean over the last Count samples.
// Once full, the oldest contribution is approximated by sum/count, so no
// sample buffer is needed.
type MovingAverage struct {
	sum      int64
	count    int32
	curCount int32
}

// NewMovingAverage creates a filter averaging over count samples.
func NewMovingAverage(count int32) MovingAverage {
	if count < 1 {
		count = 1
	}
	return MovingAverage{count: count}
}

// Step feeds v into the filter and returns the new mean.
func (m *MovingAverage) Step(v int32) int32 {
	if m.count < 1 {
		m.count = 1
	}
	if m.curCount < m.count {
		m.curCount++
	} else {
		m.sum -= m.sum / int64(m.count)
	}
	m.sum += int64(v) * AverageScale
	return m.Val()
}

// Val returns the current mean. Zero before the first sample.
func (m *MovingAverage) Val() int32 {
	if m.curCount == 0 {
		return 0
	}
	return int32(m.sum / int64(m.curCount) / AverageScale)
}

// Count returns the configured window length.
func (m *MovingAverage) Count() int32 { return m.count }

// Reset clears the accumulated samples.
func (m *MovingAverage) Reset() {
	m.sum = 0
	m.curCount = 0
}

// Hysteresis is a comparator with a dead band around Trigger.
// Without Invert the result turns true above Trigger+Hysteresis and false
// below Trigger-Hysteresis. With Invert the directions swap.
type Hysteresis struct {
	Trigger    int32
	Hysteresis int32
	Invert     bool
	result     bool
}

// NewHysteresis returns a comparator with a false initial result.
func NewHysteresis(trigger, hysteresis int32, invert bool) Hysteresis {
	return Hysteresis{Trigger: trigger, Hysteresis: hysteresis, Invert: invert}
}

// Step updates the comparator and returns its result.
func (h *Hysteresis) Step(in int32) bool {
	hi := h.Trigger + h.Hysteresis
	lo := h.Trigger - h.Hysteresis
	if h.Invert {
		if !h.result && in < lo {
			h.result = true
		} else if h.result && in > hi {
			h.result = false
		}
	} else {
		if !h.result && in > hi {
			h.result = true
		} else if h.result && in < lo {
			h.result = false
		}
	}
	return h.result
}

// Result returns the last comparator output.
func (h *Hysteresis) Result() bool { return h.result }

// Reset forces the result back to false.
func (h *Hysteresis) Reset() { h.result = false }

// Delay is a millisecond countdown advanced by Step.
// The zero value has already ended.
type Delay struct {
	remaining int32
	running   bool
}

// NewDelay returns a countdown armed with ms.
func NewDelay(ms int32) Delay {
	var d Delay
	d.Init(ms)
	return d
}

// Init re-arms the countdown. A non-positive ms expires on the next Step.
func (d *Delay) Init(ms int32) {
	if ms < 0 {
		ms = 0
	}
	d.remaining = ms
	d.running = true
}

// Step advances the countdown by stepMs and reports true exactly once, on
// the call where it expires.
func (d *Delay) Step(stepMs int32) bool {
	if !d.running {
		return false
	}
	d.remaining -= stepMs
	if d.remaining <= 0 {
		d.remaining = 0
		d.running = false
		return true
	}
	return false
}

// HasEnded reports whether the countdown has expired (or was never armed).
func (d *Delay) HasEnded() bool { return !d.running }

// End stops the countdown without reporting expiry.
func (d *Delay) End() {
	d.remaining = 0
	d.running = false
}
