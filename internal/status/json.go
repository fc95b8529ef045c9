package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	EMCY          EMCYJSON     `json:"emcy"`
	Outputs       []OutputJSON `json:"outputs"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// EMCYJSON is the JSON representation of emergency totals.
type EMCYJSON struct {
	Sent    int `json:"sent"`
	Dropped int `json:"dropped"`
}

// OutputJSON is the JSON representation of one output.
type OutputJSON struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	TargetReq   int32  `json:"target_req"`
	Target      int32  `json:"target"`
	Current     int32  `json:"current"`
	PWM         uint16 `json:"pwm"`
	AvgCurrent  int32  `json:"avg_current"`
	PeakCurrent int32  `json:"peak_current"`
	Steps       uint64 `json:"steps"`
	Error       string `json:"error,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	StepMs      int64  `json:"step_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	CANIface    string `json:"can_iface,omitempty"`
	Node        uint8  `json:"node"`
	Sim         bool   `json:"sim"`
}

func buildInner(snap Snapshot) StatusInner {
	outputs := make([]OutputJSON, 0, len(snap.Outputs))
	for _, o := range snap.Outputs {
		state := string(o.State)
		if state == "" {
			state = "UNKNOWN"
		}
		outputs = append(outputs, OutputJSON{
			Name:        o.Name,
			Kind:        o.Kind,
			State:       state,
			TargetReq:   o.TargetReq,
			Target:      o.Target,
			Current:     o.Current,
			PWM:         o.PWM,
			AvgCurrent:  o.AvgCurrent,
			PeakCurrent: o.PeakCurrent,
			Steps:       o.Steps,
			Error:       o.Error,
		})
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		EMCY:          EMCYJSON{Sent: snap.EMCY.Sent, Dropped: snap.EMCY.Dropped},
		Outputs:       outputs,
		Config: ConfigJSON{
			StepMs:      snap.Config.StepMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			CANIface:    snap.Config.CANIface,
			Node:        snap.Config.Node,
			Sim:         snap.Config.Sim,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
