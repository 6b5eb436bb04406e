package report

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"latencyreport/pkg/correlate"
	"latencyreport/pkg/types"
)

// chartSpecs names the conventionally-generated chart images per alias. The
// dashboard only references images that already exist on disk; rendering them
// is an external tool's job.
var chartSpecs = []struct {
	pattern string
	title   string
	desc    string
}{
	{"latency_%s.png", "Latency vs Seq",
		"For each received message, latency_ms = recv_ts_ms - pub_ts_ms; x-axis is published sequence."},
	{"latency_%s_with_missing.png", "Latency + Missing",
		"Latency line for received messages; markers at y=0 denote publishes with no matching receive within the window."},
	{"rate_%s.png", "Published vs Received per Second",
		"Published counts are grouped by publish second; received counts by receive second."},
	{"rate_%s_ratio.png", "Delivered Ratio per Pub-Second",
		"For each publish second: delivered/published, bounded in [0,1]."},
}

// configKeyOrder fixes the publisher-config bullet list ordering.
var configKeyOrder = []string{
	"publisher", "client_id", "host", "port", "keepalive_secs", "clean_session",
	"separate_pubsub_connections", "qos", "payload_bytes", "publish_interval_ms",
}

type htmlChart struct {
	File    string
	Title   string
	Caption string
}

type htmlKV struct {
	Key   string
	Value string
}

type htmlMessage struct {
	Time     string
	Seq      int64
	Received string
	Latency  string
}

type htmlCard struct {
	Alias     string
	Published int
	Received  int
	Missing   int
	Ratio     string
	Lat       []string // min, mean, p50, p95, p99, max
	Charts    []htmlChart
	Config    []htmlKV
	Messages  []htmlMessage
}

type htmlPage struct {
	Title         string
	MetaLine      string
	WindowLine    string
	GeneratedLine string
	Cards         []htmlCard
}

// WriteHTML writes index.html, a self-contained dashboard over the summary.
// events supplies the per-topic message detail table.
func WriteHTML(outdir string, s *Summary, events map[string]correlate.TopicEvents) (string, error) {
	page := htmlPage{Title: s.Title}
	if s.Window.SinceUnix != nil && s.Window.UntilUnix != nil {
		page.WindowLine = fmt.Sprintf("Window: %s (%d) to %s (%d)",
			*s.Window.SinceHuman, *s.Window.SinceUnix, *s.Window.UntilHuman, *s.Window.UntilUnix)
		page.GeneratedLine = fmt.Sprintf("Generated: %s (%d)", s.Generated.Human, s.Generated.Unix)
	} else if s.Meta != "" {
		page.MetaLine = s.Meta
	}

	for _, alias := range s.order {
		block := s.Topics[alias]
		te := events[block.Topic]
		page.Cards = append(page.Cards, buildCard(outdir, alias, block, te))
	}

	path := filepath.Join(outdir, "index.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := dashboardTmpl.Execute(f, page); err != nil {
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	return path, nil
}

// maxMessageRows caps the per-topic detail table; beyond this the CSVs are
// the right place to look.
const maxMessageRows = 2000

func buildCard(outdir, alias string, block TopicBlock, te correlate.TopicEvents) htmlCard {
	card := htmlCard{
		Alias:     alias,
		Published: block.Published,
		Received:  block.Received,
		Missing:   block.Missing,
		Ratio:     fmtRatio(block.DeliveredRatio),
	}
	lat := block.Latency
	for _, v := range []*float64{lat.Min, lat.Mean, lat.P50, lat.P95, lat.P99, lat.Max} {
		card.Lat = append(card.Lat, fmtStat(v))
	}

	for _, spec := range chartSpecs {
		fn := fmt.Sprintf(spec.pattern, alias)
		if _, err := os.Stat(filepath.Join(outdir, fn)); err != nil {
			continue
		}
		card.Charts = append(card.Charts, htmlChart{
			File:    fn,
			Title:   spec.title,
			Caption: spec.title + " - " + spec.desc,
		})
	}

	for _, key := range configKeyOrder {
		v, ok := block.Config[key]
		if !ok {
			continue
		}
		card.Config = append(card.Config, htmlKV{Key: key, Value: fmtScalar(v)})
	}

	recvBySeq := make(map[int64]types.ReceiveEvent, len(te.Receives))
	for _, r := range te.Receives {
		if _, ok := recvBySeq[r.Seq]; !ok {
			recvBySeq[r.Seq] = r
		}
	}
	for i, p := range te.Publishes {
		if i >= maxMessageRows {
			break
		}
		msg := htmlMessage{
			Time:     time.UnixMilli(p.PubTsMs).Format(humanTime),
			Seq:      p.Seq,
			Received: "no",
		}
		if r, ok := recvBySeq[p.Seq]; ok {
			msg.Received = "yes"
			msg.Latency = strconv.FormatInt(r.LatencyMs, 10)
		}
		card.Messages = append(card.Messages, msg)
	}
	return card
}

// fmtStat renders a latency statistic: blank when absent, integer when the
// value is whole, otherwise one decimal.
func fmtStat(v *float64) string {
	if v == nil {
		return ""
	}
	if math.Abs(*v-math.Round(*v)) < 1e-9 {
		return strconv.FormatInt(int64(math.Round(*v)), 10)
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func fmtRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(math.Round(*v*1000)/1000, 'g', -1, 64)
}

func fmtScalar(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8">
<title>{{.Title}}</title>
<style>
:root{--bg:#0b0f14;--panel:#121821;--muted:#9fb0c5;--text:#e6eef7;--accent:#5eb1ff;}
body{margin:24px;background:var(--bg);color:var(--text);font:14px/1.45 system-ui,Segoe UI,Roboto,Arial,sans-serif;}
h1{margin:0 0 4px 0;font-size:22px;font-weight:600;}
.meta{color:var(--muted);margin:0 0 20px 0;}
.grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(320px,1fr));gap:16px;}
.card{background:var(--panel);border:1px solid rgba(255,255,255,0.06);box-shadow:0 2px 8px rgba(0,0,0,0.25);border-radius:10px;overflow:hidden;}
.card h2{margin:0;padding:12px 14px;font-size:16px;font-weight:600;border-bottom:1px solid rgba(255,255,255,0.06);}
.body{padding:12px 14px;}
table{width:100%;border-collapse:collapse;margin:6px 0 12px 0;min-width:520px;}
th,td{padding:8px 10px;border-bottom:1px solid rgba(255,255,255,0.06);text-align:left;}
th{color:var(--muted);font-weight:600;background:rgba(255,255,255,0.02);}
.chips{display:flex;gap:8px;flex-wrap:wrap;margin:8px 0;}
.chip{background:rgba(255,255,255,0.06);padding:6px 10px;border-radius:999px;border:1px solid rgba(255,255,255,0.08);}
.charts{display:grid;grid-template-columns:repeat(auto-fit,minmax(380px,1fr));gap:12px;margin-top:8px;}
figure{margin:0;}
figcaption{color:var(--muted);font-size:12px;margin:6px 0 0 0;}
img{width:100%;height:auto;border:1px solid rgba(255,255,255,0.08);border-radius:8px;background:#0e131a;}
img.chart{cursor:zoom-in;}
.note{color:var(--muted);font-size:13px;margin-top:6px;}
.details{margin-top:10px;}
.details h3{margin:10px 0 6px 0;font-size:14px;}
.scroll{overflow-x:auto;}
.lightbox{position:fixed;inset:0;display:none;align-items:center;justify-content:center;background:rgba(0,0,0,0.7);z-index:9999;}
.lightbox.open{display:flex;}
.lb-inner{max-width:96vw;max-height:92vh;text-align:center;}
.lb-inner img{max-width:96vw;max-height:85vh;border-radius:10px;box-shadow:0 8px 30px rgba(0,0,0,0.45);}
.lb-cap{color:#e6eef7;margin-top:8px;font-size:13px;opacity:0.9;}
</style>
</head><body>
<h1>{{.Title}}</h1>
{{if .WindowLine}}<div class="meta">{{.WindowLine}}</div>
<div class="meta">{{.GeneratedLine}}</div>
{{else if .MetaLine}}<div class="meta">{{.MetaLine}}</div>
{{end}}<div class="grid">
{{range .Cards}}<div class="card"><h2>{{.Alias}}</h2><div class="body">
<div class="chips">
<div class="chip">published: <strong>{{.Published}}</strong></div>
<div class="chip">received: <strong>{{.Received}}</strong></div>
<div class="chip">missing: <strong>{{.Missing}}</strong></div>
<div class="chip">delivered ratio: <strong>{{.Ratio}}</strong></div>
</div>
<div class="scroll">
<table class="stats"><tr><th>min</th><th>mean</th><th>p50</th><th>p95</th><th>p99</th><th>max</th></tr>
<tr>{{range .Lat}}<td>{{.}}</td>{{end}}</tr></table>
</div>
{{if .Charts}}<div class="charts">
{{range .Charts}}<figure><img class="chart" src="{{.File}}" alt="{{.Title}}" title="{{.Title}}" data-caption="{{.Caption}}"><figcaption>{{.Caption}}</figcaption></figure>
{{end}}</div>
{{else}}<div class="note">No charts generated. Install gnuplot to render PNGs.</div>
{{end}}<div class="details">
<h3>Publisher config</h3>
<ul>
{{range .Config}}<li><strong>{{.Key}}</strong>: {{.Value}}</li>
{{end}}</ul>
<h3>Messages</h3>
<div class="scroll">
<table><tr><th>time</th><th>seq</th><th>received?</th><th>latency_ms</th></tr>
{{range .Messages}}<tr><td>{{.Time}}</td><td>{{.Seq}}</td><td>{{.Received}}</td><td>{{.Latency}}</td></tr>
{{end}}</table>
</div>
</div>
</div></div>
{{end}}</div>
<div id="lightbox" class="lightbox" aria-modal="true" role="dialog">
  <div class="lb-inner">
    <img id="lb-img" alt="chart">
    <div id="lb-cap" class="lb-cap"></div>
  </div>
</div>
<script>
  (function(){
    const lb = document.getElementById("lightbox");
    const im = document.getElementById("lb-img");
    const cp = document.getElementById("lb-cap");
    function open(src, cap){ im.src = src; cp.textContent = cap||""; lb.classList.add("open"); }
    function close(){ lb.classList.remove("open"); im.src=""; cp.textContent=""; }
    document.addEventListener("click", function(e){
      const t = e.target;
      if (t && t.classList && t.classList.contains("chart")) {
        open(t.getAttribute("src"), t.getAttribute("data-caption"));
      } else if (t === lb) {
        close();
      }
    });
    document.addEventListener("keydown", function(e){ if (e.key === "Escape") close(); });
  })();
</script>
</body></html>
`))
