package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/propvalve/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		case "FAULT", "OVERLOAD":
			return "fault"
		case "DISABLED":
			return "disabled"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Valve Driver</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.disabled { color: #555; font-style: italic; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Valve Driver{{if .Config.Sim}} (simulated){{end}}</h1>

<h2>Outputs</h2>
<table>
<tr><th>Name</th><th>Kind</th><th>State</th><th>Request</th><th>Target</th><th>Current</th><th>Avg</th><th>Peak</th><th>PWM</th></tr>
{{range .Outputs}}{{$state := stateOrUnknown (printf "%s" .State)}}<tr>
<td>{{.Name}}</td><td>{{.Kind}}</td>
<td class="{{stateClass $state}}"{{if .Error}} title="{{.Error}}"{{end}}>{{$state}}</td>
<td>{{.TargetReq}}</td><td>{{.Target}}</td><td>{{.Current}}</td><td>{{.AvgCurrent}}</td><td>{{.PeakCurrent}}</td><td>{{.PWM}}</td>
</tr>
{{else}}<tr><td colspan="9">no outputs</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>CAN</th><td>{{if .Config.CANIface}}{{.Config.CANIface}} (node {{.Config.Node}}){{else}}disabled{{end}}</td></tr>
<tr><th>EMCY sent</th><td>{{.EMCY.Sent}}</td></tr>
<tr><th>EMCY dropped</th><td>{{.EMCY.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Step</th><td>{{.Config.StepMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
