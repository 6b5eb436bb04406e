// Package aggregate turns one topic's canonical event lists into delivery and
// latency statistics plus per-second rate series. Compute is a pure function:
// no state is carried between topics and identical inputs always yield
// identical results.
package aggregate

import (
	"math"
	"sort"

	"latencyreport/pkg/types"
)

// Result is the full aggregation output for one topic.
type Result struct {
	Stats TopicStats
	// Missing lists published seqs with no matching receive, in publish-list
	// order (seq ascending).
	Missing []types.MissingRecord
	// Rate covers the union of active publish-second and receive-second
	// buckets, ascending.
	Rate []types.RateRow
}

// TopicStats aliases the shared model so callers can stay on one import.
type TopicStats = types.TopicStats

// Compute aggregates one topic. pubs must be the canonical deduplicated
// publish list and both lists must be seq-sorted, as produced by the
// correlator. Empty inputs degrade to zero counts with all optional fields
// absent rather than zero.
func Compute(topic string, pubs []types.PublishEvent, recvs []types.ReceiveEvent) Result {
	recvSeqs := make(map[int64]bool, len(recvs))
	for _, r := range recvs {
		recvSeqs[r.Seq] = true
	}

	// Delivered counts the intersection of canonical publish seqs and receive
	// seqs. A receive for a seq that was never canonically published (log
	// noise) raises the received count but not delivered, so
	// delivered <= published holds and missing never goes negative.
	delivered := 0
	var missing []types.MissingRecord
	for _, p := range pubs {
		if recvSeqs[p.Seq] {
			delivered++
		} else {
			missing = append(missing, types.MissingRecord{Seq: p.Seq, PubTsMs: p.PubTsMs})
		}
	}

	published := len(pubs)
	missingCount := published - delivered
	if missingCount < 0 {
		missingCount = 0
	}

	stats := TopicStats{
		Topic:     topic,
		Alias:     types.TopicAliases[topic],
		Published: published,
		Received:  len(recvs),
		Delivered: delivered,
		Missing:   missingCount,
	}
	if published > 0 {
		stats.DeliveredRatio = optFloat(float64(delivered) / float64(published))
	}

	stats.Latency = latencyStats(recvs)

	if len(pubs) > 0 {
		first := pubs[0].PubTsMs
		for _, p := range pubs[1:] {
			if p.PubTsMs < first {
				first = p.PubTsMs
			}
		}
		stats.Time.FirstPubTsMs = optInt(first)
	}
	if len(recvs) > 0 {
		last := recvs[0].RecvTsMs
		for _, r := range recvs[1:] {
			if r.RecvTsMs > last {
				last = r.RecvTsMs
			}
		}
		stats.Time.LastRecvTsMs = optInt(last)
	}

	return Result{Stats: stats, Missing: missing, Rate: rateRows(pubs, recvs, recvSeqs)}
}

// latencyStats computes min/mean/max and interpolated percentiles over the
// non-negative latency samples. Negative samples mean the producer and
// consumer clocks disagreed; they count as received but would poison the
// distribution.
func latencyStats(recvs []types.ReceiveEvent) types.LatencyStats {
	var lats []float64
	var sum float64
	for _, r := range recvs {
		if r.LatencyMs >= 0 {
			lats = append(lats, float64(r.LatencyMs))
			sum += float64(r.LatencyMs)
		}
	}
	if len(lats) == 0 {
		return types.LatencyStats{}
	}
	sort.Float64s(lats)
	return types.LatencyStats{
		Min:  optFloat(lats[0]),
		Max:  optFloat(lats[len(lats)-1]),
		Mean: optFloat(sum / float64(len(lats))),
		P50:  optFloat(percentile(lats, 50)),
		P95:  optFloat(percentile(lats, 95)),
		P99:  optFloat(percentile(lats, 99)),
	}
}

// percentile interpolates linearly between the two ranks surrounding the
// fractional rank (n-1)*p/100. Input must be sorted ascending and non-empty.
func percentile(sorted []float64, p float64) float64 {
	k := float64(len(sorted)-1) * p / 100.0
	f := int(math.Floor(k))
	c := f + 1
	if c > len(sorted)-1 {
		c = len(sorted) - 1
	}
	if f == c {
		return sorted[f]
	}
	return sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
}

// rateRows builds the combined per-second view. The delivered ratio buckets
// by publish second: of the publishes in that second, the fraction whose seq
// was eventually received anywhere in the window.
func rateRows(pubs []types.PublishEvent, recvs []types.ReceiveEvent, recvSeqs map[int64]bool) []types.RateRow {
	perSecPub := map[int64]int{}
	perSecDelivered := map[int64]int{}
	for _, p := range pubs {
		s := p.PubTsMs / 1000
		perSecPub[s]++
		if recvSeqs[p.Seq] {
			perSecDelivered[s]++
		}
	}
	perSecRecv := map[int64]int{}
	for _, r := range recvs {
		perSecRecv[r.RecvTsMs/1000]++
	}

	seen := map[int64]bool{}
	secs := make([]int64, 0, len(perSecPub)+len(perSecRecv))
	for s := range perSecPub {
		if !seen[s] {
			seen[s] = true
			secs = append(secs, s)
		}
	}
	for s := range perSecRecv {
		if !seen[s] {
			seen[s] = true
			secs = append(secs, s)
		}
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	rows := make([]types.RateRow, 0, len(secs))
	for _, s := range secs {
		row := types.RateRow{SecondUnix: s, Published: perSecPub[s], Received: perSecRecv[s]}
		if pc := perSecPub[s]; pc > 0 {
			row.DeliveredRatio = optFloat(float64(perSecDelivered[s]) / float64(pc))
		}
		rows = append(rows, row)
	}
	return rows
}

func optFloat(v float64) *float64 { return &v }

func optInt(v int64) *int64 { return &v }
