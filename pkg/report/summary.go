// Package report renders aggregation results as the on-disk report files:
// per-topic CSV tables, a JSON summary, a text summary, and an optional HTML
// dashboard. It consumes the aggregator's output structures and never
// recomputes statistics.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"latencyreport/pkg/types"
)

const humanTime = "2006-01-02 15:04:05"

var (
	sinceRe = regexp.MustCompile(`since=(\d+)`)
	untilRe = regexp.MustCompile(`until=(\d+)`)
)

// WindowInfo bounds the capture window, parsed from since=/until= tokens in
// the freeform meta string. All fields are absent when the tokens are.
type WindowInfo struct {
	SinceUnix  *int64  `json:"since_unix"`
	UntilUnix  *int64  `json:"until_unix"`
	SinceHuman *string `json:"since_human"`
	UntilHuman *string `json:"until_human"`
}

// GeneratedInfo records when the report was produced.
type GeneratedInfo struct {
	Human string `json:"human"`
	Unix  int64  `json:"unix"`
}

// TopicBlock is one alias section of the summary: the aggregated stats plus
// the publisher-config snapshot.
type TopicBlock struct {
	types.TopicStats
	Config map[string]interface{} `json:"config"`
}

// Summary is the top-level summary document, serialised verbatim to
// summary.json and mirrored tersely in summary.txt.
type Summary struct {
	Title     string                `json:"title"`
	Meta      string                `json:"meta"`
	ReportID  string                `json:"report_id"`
	Window    WindowInfo            `json:"window"`
	Generated GeneratedInfo         `json:"generated"`
	Topics    map[string]TopicBlock `json:"topics"`

	order []string
}

// NewSummary stamps the report identity and capture window.
func NewSummary(title, meta string, now time.Time) *Summary {
	s := &Summary{
		Title:    title,
		Meta:     meta,
		ReportID: uuid.NewString(),
		Generated: GeneratedInfo{
			Human: now.Format(humanTime),
			Unix:  now.Unix(),
		},
		Topics: map[string]TopicBlock{},
	}
	if m := sinceRe.FindStringSubmatch(meta); m != nil {
		if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			h := time.Unix(ts, 0).Format(humanTime)
			s.Window.SinceUnix = &ts
			s.Window.SinceHuman = &h
		}
	}
	if m := untilRe.FindStringSubmatch(meta); m != nil {
		if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			h := time.Unix(ts, 0).Format(humanTime)
			s.Window.UntilUnix = &ts
			s.Window.UntilHuman = &h
		}
	}
	return s
}

// AddTopic registers one alias section. Insertion order is preserved for the
// text and HTML renderings; JSON maps sort their keys on their own.
func (s *Summary) AddTopic(stats types.TopicStats, cfg map[string]interface{}) {
	s.Topics[stats.Alias] = TopicBlock{TopicStats: stats, Config: cfg}
	s.order = append(s.order, stats.Alias)
}

// Aliases returns the registered aliases in insertion order.
func (s *Summary) Aliases() []string {
	return append([]string(nil), s.order...)
}

// WriteJSON writes summary.json.
func (s *Summary) WriteJSON(outdir string) (string, error) {
	path := filepath.Join(outdir, "summary.json")
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteText writes summary.txt, a terse human-readable mirror of the JSON.
func (s *Summary) WriteText(outdir string) (string, error) {
	path := filepath.Join(outdir, "summary.txt")
	var b strings.Builder
	b.WriteString(s.Title + "\n")
	if s.Meta != "" {
		fmt.Fprintf(&b, "meta: %s\n", s.Meta)
	}
	for _, alias := range s.order {
		st := s.Topics[alias]
		fmt.Fprintf(&b, "\n[%s] published=%d received=%d delivered=%d missing=%d delivered_ratio=%s\n",
			alias, st.Published, st.Received, st.Delivered, st.Missing, fmtOpt(st.DeliveredRatio))
		lat := st.Latency
		fmt.Fprintf(&b, "latency_ms: min=%s mean=%s p50=%s p95=%s p99=%s max=%s\n",
			fmtOpt(lat.Min), fmtOpt(lat.Mean), fmtOpt(lat.P50), fmtOpt(lat.P95), fmtOpt(lat.P99), fmtOpt(lat.Max))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// fmtOpt renders an optional float for the text summary: n/a when absent,
// otherwise the shortest exact representation.
func fmtOpt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
