package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/desk-scheduler/internal/status"
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
	// cm renders millimetres the way the handset display does.
	"cm": func(mm uint16) string {
		if mm == 0 {
			return "unknown"
		}
		return fmt.Sprintf("%d.%d cm", mm/10, mm%10)
	},
	"postureClass": func(p string) string {
		switch p {
		case "STANDING":
			return "standing"
		case "SITTING":
			return "sitting"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Desk Scheduler</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.standing { color: green; font-weight: bold; }
.sitting { color: #36c; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.off { color: #888; }
button { font-family: monospace; margin: 2px; }
</style>
</head>
<body>
<h1>Desk Scheduler</h1>

<h2>Desk</h2>
<table>
<tr><th>Height</th><td id="height">{{cm .HeightMM}}</td></tr>
<tr><th>Posture</th><td id="posture" class="{{postureClass (printf "%s" .Posture)}}">{{.Posture}}</td></tr>
<tr><th>Target</th><td id="target">{{.Target}}</td></tr>
<tr><th>Controller</th><td>{{if .Active}}awake{{else}}idle{{end}}</td></tr>
<tr><th>Standing / sitting</th><td>{{cm .Params.StandingMM}} / {{cm .Params.SittingMM}} (&plusmn;{{.Params.ToleranceMM}} mm)</td></tr>
{{if .Last}}<tr><th>Last command</th><td>{{.Last.Command}} via {{.Last.Source}} at {{.Last.Timestamp.UTC.Format "15:04:05Z"}}</td></tr>{{end}}
</table>
<form method="post" id="controls">
<button formaction="/api/command/UP">Up</button>
<button formaction="/api/command/DOWN">Down</button>
<button formaction="/api/command/PRESET_3">Stand</button>
<button formaction="/api/command/PRESET_4">Sit</button>
</form>

<h2>Schedule</h2>
<table>
{{range .Days}}<tr><th>{{.Day}}</th><td{{if not .Enabled}} class="off"{{end}}>{{if .Enabled}}{{.Start}}&ndash;{{.End}}, stand {{.DurationS}}s every {{.IntervalS}}s{{else}}off{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Heights</th><td>{{.Counts.Heights}}</td></tr>
<tr><th>Sign-offs</th><td>{{.Counts.SignOffs}}</td></tr>
<tr><th>Malformed</th><td>{{.Counts.Malformed}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}} ({{.Counts.CommandErrors}} failed, {{.Counts.Throttled}} throttled)</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialDevice}} @ {{.Config.Baud}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/api/schedule">Schedule</a> &middot; <a href="/metrics">Metrics</a></p>
<script>
(function() {
  var form = document.getElementById("controls");
  form.addEventListener("submit", function(e) {
    e.preventDefault();
    fetch(e.submitter.formAction, { method: "POST" });
  });

  var height = document.getElementById("height");
  var posture = document.getElementById("posture");
  var target = document.getElementById("target");
  setInterval(function() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) {
      var d = j.status.desk;
      height.textContent = d.height_mm ? (Math.floor(d.height_mm / 10) + "." + d.height_mm % 10 + " cm") : "unknown";
      posture.textContent = d.posture;
      posture.className = d.posture === "STANDING" ? "standing" : d.posture === "SITTING" ? "sitting" : "unknown";
      target.textContent = j.status.schedule.target;
    }).catch(function() {});
  }, 2000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Days   []status.DayJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Days:     status.Days(snap.Days),
	}
	return indexTmpl.Execute(w, data)
}
