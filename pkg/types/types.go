package types

// PublishEvent is one [publish] record extracted from a capture log. The same
// (topic, seq) pair may appear more than once across sources or duplicate log
// lines; deduplication happens in the correlator.
type PublishEvent struct {
	Topic   string
	Seq     int64
	PubTsMs int64
}

// ReceiveEvent is one receive record extracted from a capture log.
type ReceiveEvent struct {
	Topic     string
	Seq       int64
	LatencyMs int64 // negative when the two clocks disagree
	PubTsMs   int64
	RecvTsMs  int64
}

// MissingRecord marks a published seq with no matching receive.
type MissingRecord struct {
	Seq     int64
	PubTsMs int64
}

// LatencyStats holds the latency distribution over non-negative samples.
// Nil means no data, which is distinct from a measured zero.
type LatencyStats struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	P50  *float64 `json:"p50"`
	P95  *float64 `json:"p95"`
	P99  *float64 `json:"p99"`
}

// Window bounds the observed capture activity for one topic.
type Window struct {
	FirstPubTsMs *int64 `json:"first_pub_ts_ms"`
	LastRecvTsMs *int64 `json:"last_recv_ts_ms"`
}

// TopicStats is the per-topic aggregation result.
type TopicStats struct {
	Topic          string       `json:"topic"`
	Alias          string       `json:"alias"`
	Published      int          `json:"published"`
	Received       int          `json:"received"`
	Delivered      int          `json:"delivered"`
	Missing        int          `json:"missing"`
	DeliveredRatio *float64     `json:"delivered_ratio"`
	Latency        LatencyStats `json:"latency_ms"`
	Time           Window       `json:"time"`
}

// RateRow is one second-wide bucket of the combined rate view. Published
// counts bucket by publish time, received counts by receive time, so the two
// columns are intentionally not time-aligned one-for-one. DeliveredRatio is
// nil when no publishes landed in the bucket.
type RateRow struct {
	SecondUnix     int64
	Published      int
	Received       int
	DeliveredRatio *float64
}
