// Package status provides a thread-safe status tracker for the valve driver daemon.
// It is read by HTTP handlers and by the heartbeat publisher.
package status

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/asecurityteam/rolling"

	"github.com/sweeney/propvalve/internal/output"
)

// DefaultWindow is the number of steps in the rolling current window.
const DefaultWindow = 50

// Config contains daemon configuration for display.
type Config struct {
	StepMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	CANIface    string
	Node        uint8
	Sim         bool
}

// OutputInfo is the snapshot of one output channel.
type OutputInfo struct {
	Name        string
	Kind        string
	State       output.State
	TargetReq   int32
	Target      int32
	Current     int32
	PWM         uint16
	AvgCurrent  int32
	PeakCurrent int32
	Steps       uint64
	Error       string
}

// EMCYCounts tracks emergency dispatch totals.
type EMCYCounts struct {
	Sent    int
	Dropped int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Outputs       []OutputInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	EMCY          EMCYCounts
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Output returns the named output and whether it exists.
func (s Snapshot) Output(name string) (OutputInfo, bool) {
	for _, o := range s.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputInfo{}, false
}

type channel struct {
	info   OutputInfo
	window *rolling.PointPolicy
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	channels  map[string]*channel
	windowLen int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return NewTrackerWindow(startTime, cfg, DefaultWindow)
}

// NewTrackerWindow creates a Tracker whose current statistics cover the
// last n steps of each output.
func NewTrackerWindow(startTime time.Time, cfg Config, n int) *Tracker {
	if n < 1 {
		n = 1
	}
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		channels:  make(map[string]*channel),
		windowLen: n,
	}
}

// Update records the latest status of an output. Called from runLoop after
// every step. err is the output's last hardware error, if any.
func (t *Tracker) Update(name, kind string, st output.Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.channels[name]
	if !ok {
		ch = &channel{window: rolling.NewPointPolicy(rolling.NewWindow(t.windowLen))}
		t.channels[name] = ch
	}

	mag := st.Current
	if mag < 0 {
		mag = -mag
	}
	ch.window.Append(float64(mag))

	ch.info.Name = name
	ch.info.Kind = kind
	ch.info.State = st.State
	ch.info.TargetReq = st.TargetReq
	ch.info.Target = st.Target
	ch.info.Current = st.Current
	ch.info.PWM = st.PWM
	ch.info.AvgCurrent = int32(math.Round(ch.window.Reduce(rolling.Avg)))
	ch.info.PeakCurrent = int32(math.Round(ch.window.Reduce(rolling.Max)))
	ch.info.Steps++
	ch.info.Error = ""
	if err != nil {
		ch.info.Error = err.Error()
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetEMCY sets the emergency dispatch totals.
func (t *Tracker) SetEMCY(sent, dropped int) {
	t.mu.Lock()
	t.snap.EMCY = EMCYCounts{Sent: sent, Dropped: dropped}
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state, with outputs
// sorted by name. The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Outputs = make([]OutputInfo, 0, len(t.channels))
	for _, ch := range t.channels {
		s.Outputs = append(s.Outputs, ch.info)
	}
	t.mu.RUnlock()

	sort.Slice(s.Outputs, func(i, j int) bool { return s.Outputs[i].Name < s.Outputs[j].Name })
	s.Now = time.Now()
	return s
}
