// Package extract pulls typed publish/receive events out of raw capture logs.
// Capture lines are free-form; each field is recognised by its own
// label-prefixed token, so field order within a line does not matter and
// unrelated lines fall through silently.
package extract

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"

	"latencyreport/pkg/types"
)

var (
	topicRe   = regexp.MustCompile(`topic=(\S+)`)
	seqRe     = regexp.MustCompile(`seq=(\d+)`)
	latencyRe = regexp.MustCompile(`latency_ms=(-?\d+)`)
	pubTsRe   = regexp.MustCompile(`pub_ts_ms=(\d+)`)
	recvTsRe  = regexp.MustCompile(`recv_ts_ms=(\d+)`)
)

// publishTag distinguishes genuine publish records from echo/debug lines that
// happen to carry the same fields.
const publishTag = "[publish]"

// maxLineBytes caps a single log line; anything longer is the result of log
// corruption. The over-long line itself is skipped and the scan continues on
// the next newline.
const maxLineBytes = 1024 * 1024

// ParseReceives returns every line of the log at path that carries a complete
// receive record: topic, seq, latency_ms, pub_ts_ms and recv_ts_ms. Latency
// may be negative. A missing or unreadable file yields no events.
func ParseReceives(path string) []types.ReceiveEvent {
	var out []types.ReceiveEvent
	scanLines(path, func(line string) {
		topic, ok := firstString(topicRe, line)
		if !ok {
			return
		}
		seq, ok := firstInt(seqRe, line)
		if !ok {
			return
		}
		lat, ok := firstInt(latencyRe, line)
		if !ok {
			return
		}
		pubTs, ok := firstInt(pubTsRe, line)
		if !ok {
			return
		}
		recvTs, ok := firstInt(recvTsRe, line)
		if !ok {
			return
		}
		out = append(out, types.ReceiveEvent{
			Topic:     topic,
			Seq:       seq,
			LatencyMs: lat,
			PubTsMs:   pubTs,
			RecvTsMs:  recvTs,
		})
	})
	return out
}

// ParsePublishes returns every line that carries the [publish] marker plus
// topic, seq and pub_ts_ms. Duplicate (topic, seq) records are kept as-is;
// the correlator resolves them.
func ParsePublishes(path string) []types.PublishEvent {
	var out []types.PublishEvent
	scanLines(path, func(line string) {
		if !strings.Contains(line, publishTag) {
			return
		}
		topic, ok := firstString(topicRe, line)
		if !ok {
			return
		}
		seq, ok := firstInt(seqRe, line)
		if !ok {
			return
		}
		pubTs, ok := firstInt(pubTsRe, line)
		if !ok {
			return
		}
		out = append(out, types.PublishEvent{Topic: topic, Seq: seq, PubTsMs: pubTs})
	})
	return out
}

// scanLines feeds each line of path to fn. Missing files are empty sources,
// an over-long line is skipped without losing the lines after it, and a read
// error mid-file keeps whatever already parsed; capture logs are routinely
// truncated while a run is still being torn down.
func scanLines(path string, fn func(line string)) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if !tooLong && len(chunk) > 0 {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				tooLong = true
				line = line[:0]
			}
		}
		if err != nil {
			if len(line) > 0 {
				fn(string(line))
			}
			return
		}
		if !isPrefix {
			if len(line) > 0 {
				fn(string(line))
			}
			line = line[:0]
			tooLong = false
		}
	}
}

func firstString(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func firstInt(re *regexp.Regexp, line string) (int64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
