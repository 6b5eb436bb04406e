// Command report turns capture logs from the MQTT latency pipeline into a
// report directory: per-topic latency/missing/rate CSVs, summary.json,
// summary.txt, and an optional index.html dashboard.
//
// Both log flags are optional and both logs are scanned for publish and
// receive records; the go backend contributes [publish] lines for offer/ride
// and recv records for location, the java client the other way around.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"latencyreport/pkg/aggregate"
	"latencyreport/pkg/config"
	"latencyreport/pkg/correlate"
	"latencyreport/pkg/extract"
	"latencyreport/pkg/report"
	"latencyreport/pkg/types"
	"latencyreport/pkg/utils"
)

var (
	javaLog       = flag.String("java", "", "java client capture log")
	goLog         = flag.String("go", "", "go backend capture log")
	outdir        = flag.String("outdir", "", "directory for report files (required)")
	htmlOut       = flag.Bool("html", false, "emit index.html dashboard")
	title         = flag.String("title", "MQTT Latency Report", "report title")
	meta          = flag.String("meta", "", "freeform metadata string; since=/until= unix tokens set the capture window")
	clientConfig  = flag.String("client-config", "configs/client.yaml", "java client config for the annotation snapshot")
	backendConfig = flag.String("backend-config", "configs/backend.yaml", "go backend config for the annotation snapshot")
)

func main() {
	flag.Parse()
	if *outdir == "" {
		log.Fatal("report: -outdir is required")
	}
	if err := os.MkdirAll(*outdir, 0o755); err != nil {
		log.Fatalf("report: create outdir: %v", err)
	}

	var pubs []types.PublishEvent
	var recvs []types.ReceiveEvent
	for _, path := range []string{*javaLog, *goLog} {
		if path == "" {
			continue
		}
		pubs = append(pubs, extract.ParsePublishes(path)...)
		recvs = append(recvs, extract.ParseReceives(path)...)
	}

	events := correlate.Correlate(pubs, recvs)
	clientCfg := config.Load(*clientConfig)
	backendCfg := config.Load(*backendConfig)

	summary := report.NewSummary(*title, *meta, time.Now())
	var wrote []string
	for _, topic := range correlate.ReportTopics(events) {
		te := events[topic]
		res := aggregate.Compute(topic, te.Publishes, te.Receives)
		alias := res.Stats.Alias

		path, err := report.WriteLatencyCSV(*outdir, alias, te.Receives)
		if err != nil {
			log.Fatalf("report: %v", err)
		}
		wrote = append(wrote, path)

		path, err = report.WriteMissingCSV(*outdir, alias, res.Missing)
		if err != nil {
			log.Fatalf("report: %v", err)
		}
		if path != "" {
			wrote = append(wrote, path)
		}

		path, err = report.WriteRateCSV(*outdir, alias, res.Rate)
		if err != nil {
			log.Fatalf("report: %v", err)
		}
		wrote = append(wrote, path)

		summary.AddTopic(res.Stats, config.PublisherSnapshot(alias, clientCfg, backendCfg))
	}

	path, err := summary.WriteJSON(*outdir)
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	wrote = append(wrote, path)

	path, err = summary.WriteText(*outdir)
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	wrote = append(wrote, path)

	if *htmlOut {
		path, err = report.WriteHTML(*outdir, summary, events)
		if err != nil {
			log.Fatalf("report: %v", err)
		}
		wrote = append(wrote, path)
	}

	for _, p := range wrote {
		utils.TimestampedPrintfLn("wrote %s", p)
	}
}
