package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/osd-wearable/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>{{.Config.DeviceName}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
pre { background: #111; color: #eee; padding: 8px; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.failed { color: orange; }
</style>
</head>
<body>
<h1>{{.Config.DeviceName}}</h1>

<pre id="display">{{range .Lines}}{{.}}
{{end}}</pre>

<h2>Link</h2>
<table>
<tr><th>Peer</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{.Link.Connection}}</td></tr>
<tr><th>Advertising</th><td{{if eq .Link.Advertising "FAILED"}} class="failed"{{end}}>{{.Link.Advertising}}</td></tr>
{{range $name, $on := .Link.Subscriptions}}<tr><th>{{$name}}</th><td class="{{onOff $on}}">{{onOff $on}}</td></tr>
{{end}}<tr><th>Sampling</th><td class="{{onOff .Enabled}}">{{onOff .Enabled}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Ticks</th><td>{{.Stats.Ticks}}</td></tr>
<tr><th>PPG samples</th><td>{{.Stats.PPGSamples}}</td></tr>
<tr><th>Missed sub-samples</th><td>{{.Stats.MissedSubSamples}}</td></tr>
<tr><th>Estimates</th><td>{{.Stats.Estimates}} ({{.Stats.Inconclusive}} inconclusive)</td></tr>
{{range $name, $n := .Stats.SensorFailures}}<tr><th>{{$name}} read failures</th><td>{{$n}}</td></tr>
{{end}}{{range $name, $n := .Notify.Sent}}<tr><th>{{$name}} notifications</th><td>{{$n}}</td></tr>
{{end}}<tr><th>Notify failures</th><td>{{.Notify.Failed}}</td></tr>
<tr><th>Peer events</th><td>{{.Stats.Events}} ({{.Link.DroppedEvents}} dropped)</td></tr>
<tr><th>Protocol violations</th><td>{{.Stats.ProtocolViolations}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms, {{.Config.SubSamples}} PPG samples</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .Config.Simulate}}<tr><th>Mode</th><td>simulated</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a> · <a href="/display.txt">display</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Lines is a function; the template wants fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Lines     []string
		Connected bool
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Lines:     status.Lines(snap),
		Connected: snap.Connected(),
	}
	indexTmpl.Execute(w, data)
}
