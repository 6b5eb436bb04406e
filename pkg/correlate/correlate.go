// Package correlate merges extracted events across sources and resolves them
// into per-topic canonical event lists.
package correlate

import (
	"sort"

	"latencyreport/pkg/types"
)

// TopicEvents holds one topic's canonical publish list and receive list,
// both sorted ascending by seq.
type TopicEvents struct {
	// Publishes is deduplicated: exactly one record per seq, carrying the
	// earliest pub_ts_ms observed among duplicates.
	Publishes []types.PublishEvent
	Receives  []types.ReceiveEvent
}

// Correlate groups the concatenated event streams by topic and deduplicates
// publish records. Inputs may come from any number of sources in any order;
// merging happens before deduplication so duplicate (topic, seq) pairs across
// sources collapse into one canonical record.
func Correlate(pubs []types.PublishEvent, recvs []types.ReceiveEvent) map[string]TopicEvents {
	canonical := map[string]map[int64]types.PublishEvent{}
	for _, p := range pubs {
		m := canonical[p.Topic]
		if m == nil {
			m = map[int64]types.PublishEvent{}
			canonical[p.Topic] = m
		}
		if cur, ok := m[p.Seq]; !ok || p.PubTsMs < cur.PubTsMs {
			m[p.Seq] = p
		}
	}

	byTopicRecv := map[string][]types.ReceiveEvent{}
	for _, r := range recvs {
		byTopicRecv[r.Topic] = append(byTopicRecv[r.Topic], r)
	}

	out := map[string]TopicEvents{}
	for topic, m := range canonical {
		list := make([]types.PublishEvent, 0, len(m))
		for _, p := range m {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
		te := out[topic]
		te.Publishes = list
		out[topic] = te
	}
	for topic, list := range byTopicRecv {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Seq != list[j].Seq {
				return list[i].Seq < list[j].Seq
			}
			return list[i].RecvTsMs < list[j].RecvTsMs
		})
		te := out[topic]
		te.Receives = list
		out[topic] = te
	}
	return out
}

// ReportTopics filters the correlated topics down to the ones with a report
// alias and returns them in the alias table's fixed emission order.
func ReportTopics(events map[string]TopicEvents) []string {
	var out []string
	for _, alias := range types.AliasOrder {
		topic := types.TopicForAlias(alias)
		if _, ok := events[topic]; ok {
			out = append(out, topic)
		}
	}
	return out
}
