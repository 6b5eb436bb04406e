package aggregate

import (
	"math"
	"reflect"
	"testing"

	"latencyreport/pkg/types"
)

const topic = "/driver/offer"

func pub(seq, ts int64) types.PublishEvent {
	return types.PublishEvent{Topic: topic, Seq: seq, PubTsMs: ts}
}

func recv(seq, lat, pubTs, recvTs int64) types.ReceiveEvent {
	return types.ReceiveEvent{Topic: topic, Seq: seq, LatencyMs: lat, PubTsMs: pubTs, RecvTsMs: recvTs}
}

func TestCompute_DeliveryCounts(t *testing.T) {
	// 10 publishes, 7 received, 3 missing.
	var pubs []types.PublishEvent
	for i := int64(1); i <= 10; i++ {
		pubs = append(pubs, pub(i, 1000*i))
	}
	var recvs []types.ReceiveEvent
	for i := int64(1); i <= 7; i++ {
		recvs = append(recvs, recv(i, 10, 1000*i, 1000*i+10))
	}

	res := Compute(topic, pubs, recvs)
	st := res.Stats
	if st.Published != 10 || st.Received != 7 || st.Delivered != 7 || st.Missing != 3 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.DeliveredRatio == nil || *st.DeliveredRatio != 0.7 {
		t.Fatalf("expected delivered_ratio 0.7, got %v", st.DeliveredRatio)
	}
	if len(res.Missing) != 3 {
		t.Fatalf("expected 3 missing records, got %d", len(res.Missing))
	}
	if res.Missing[0].Seq != 8 || res.Missing[2].Seq != 10 {
		t.Fatalf("missing records out of order: %+v", res.Missing)
	}
	if st.Delivered+st.Missing != st.Published {
		t.Fatalf("conservation violated: %+v", st)
	}
}

func TestCompute_NegativeLatencyExcludedFromStats(t *testing.T) {
	// Latencies [10, 20, 30, 40, -5]: the -5 still counts as received but is
	// excluded from the distribution; p50 over [10,20,30,40] interpolates to 25.
	recvs := []types.ReceiveEvent{
		recv(1, 10, 1000, 1010),
		recv(2, 20, 2000, 2020),
		recv(3, 30, 3000, 3030),
		recv(4, 40, 4000, 4040),
		recv(5, -5, 5000, 4995),
	}
	res := Compute(topic, nil, recvs)
	st := res.Stats
	if st.Received != 5 {
		t.Fatalf("negative latency must still count as received: %+v", st)
	}
	lat := st.Latency
	if lat.Min == nil || *lat.Min != 10 || lat.Max == nil || *lat.Max != 40 {
		t.Fatalf("unexpected min/max: %+v", lat)
	}
	if lat.Mean == nil || *lat.Mean != 25 {
		t.Fatalf("expected mean 25, got %v", lat.Mean)
	}
	if lat.P50 == nil || *lat.P50 != 25 {
		t.Fatalf("expected p50 25 via interpolation, got %v", lat.P50)
	}
}

func TestCompute_EmptyInputs(t *testing.T) {
	res := Compute(topic, nil, nil)
	st := res.Stats
	if st.Published != 0 || st.Received != 0 || st.Delivered != 0 || st.Missing != 0 {
		t.Fatalf("expected zero counts: %+v", st)
	}
	if st.DeliveredRatio != nil {
		t.Fatalf("delivered_ratio must be absent with no publishes, got %v", *st.DeliveredRatio)
	}
	lat := st.Latency
	if lat.Min != nil || lat.Max != nil || lat.Mean != nil || lat.P50 != nil || lat.P95 != nil || lat.P99 != nil {
		t.Fatalf("latency fields must be absent with no data: %+v", lat)
	}
	if st.Time.FirstPubTsMs != nil || st.Time.LastRecvTsMs != nil {
		t.Fatalf("window must be absent with no data: %+v", st.Time)
	}
	if len(res.Rate) != 0 || len(res.Missing) != 0 {
		t.Fatalf("expected no rate rows or missing records: %+v", res)
	}
}

func TestCompute_OnlyNegativeLatencies(t *testing.T) {
	recvs := []types.ReceiveEvent{recv(1, -3, 1000, 997)}
	st := Compute(topic, nil, recvs).Stats
	if st.Received != 1 {
		t.Fatalf("expected received=1, got %+v", st)
	}
	if st.Latency.Min != nil || st.Latency.P99 != nil {
		t.Fatalf("all-negative latencies must leave stats absent: %+v", st.Latency)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	pubs := []types.PublishEvent{pub(1, 1000), pub(2, 2000), pub(3, 2500)}
	recvs := []types.ReceiveEvent{recv(1, 12, 1000, 1012), recv(3, 7, 2500, 2507)}
	a := Compute(topic, pubs, recvs)
	b := Compute(topic, pubs, recvs)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("aggregation not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestCompute_NoisyReceiveForUnpublishedSeq(t *testing.T) {
	// A receive for a seq that was never canonically published raises
	// received but not delivered; missing stays non-negative.
	pubs := []types.PublishEvent{pub(1, 1000)}
	recvs := []types.ReceiveEvent{
		recv(1, 5, 1000, 1005),
		recv(99, 5, 900, 905),
	}
	st := Compute(topic, pubs, recvs).Stats
	if st.Published != 1 || st.Received != 2 || st.Delivered != 1 || st.Missing != 0 {
		t.Fatalf("unexpected counts for noisy receive: %+v", st)
	}
	if st.DeliveredRatio == nil || *st.DeliveredRatio != 1.0 {
		t.Fatalf("expected ratio 1.0, got %v", st.DeliveredRatio)
	}
}

func TestPercentile_BoundsAndExactness(t *testing.T) {
	lats := []float64{3, 9, 14, 27, 55, 55, 80, 120, 400, 1000}
	st := Compute(topic, nil, recvsFromLatencies(lats)).Stats
	lat := st.Latency
	vals := []float64{*lat.Min, *lat.P50, *lat.P95, *lat.P99, *lat.Max}
	for i := 1; i < len(vals); i++ {
		if vals[i-1] > vals[i] {
			t.Fatalf("percentile ordering violated: %v", vals)
		}
	}
	if *lat.Min != 3 || *lat.Max != 1000 {
		t.Fatalf("min/max must be exact sample bounds: %+v", lat)
	}
	sorted := append([]float64{}, lats...)
	if got := percentile(sorted, 0); got != 3 {
		t.Fatalf("p0 must equal min, got %v", got)
	}
	if got := percentile(sorted, 100); got != 1000 {
		t.Fatalf("p100 must equal max, got %v", got)
	}
}

func TestPercentile_SingleSample(t *testing.T) {
	for _, p := range []float64{0, 50, 95, 99, 100} {
		if got := percentile([]float64{42}, p); got != 42 {
			t.Fatalf("p%v of a single sample must be the sample, got %v", p, got)
		}
	}
}

func TestCompute_RatioBounds(t *testing.T) {
	pubs := []types.PublishEvent{pub(1, 1000), pub(2, 1200), pub(3, 2100)}
	recvs := []types.ReceiveEvent{recv(2, 8, 1200, 1208)}
	res := Compute(topic, pubs, recvs)
	if r := res.Stats.DeliveredRatio; r == nil || *r < 0 || *r > 1 {
		t.Fatalf("overall ratio out of bounds: %v", r)
	}
	for _, row := range res.Rate {
		if row.DeliveredRatio == nil {
			continue
		}
		if *row.DeliveredRatio < 0 || *row.DeliveredRatio > 1 {
			t.Fatalf("per-second ratio out of bounds: %+v", row)
		}
	}
}

func TestCompute_RateSeries(t *testing.T) {
	// Publishes in seconds 1 and 2; receives land in seconds 2 and 5. The
	// delivered ratio buckets by publish second regardless of when the
	// receive arrived.
	pubs := []types.PublishEvent{
		pub(1, 1000), pub(2, 1500), // second 1
		pub(3, 2000), // second 2
	}
	recvs := []types.ReceiveEvent{
		recv(1, 1500, 1000, 2500), // received in second 2
		recv(3, 3500, 2000, 5500), // received in second 5
	}
	res := Compute(topic, pubs, recvs)

	rows := map[int64]types.RateRow{}
	for _, row := range res.Rate {
		rows[row.SecondUnix] = row
	}
	if len(res.Rate) != 3 {
		t.Fatalf("expected buckets 1,2,5, got %+v", res.Rate)
	}
	for i := 1; i < len(res.Rate); i++ {
		if res.Rate[i-1].SecondUnix >= res.Rate[i].SecondUnix {
			t.Fatalf("rate rows not ascending: %+v", res.Rate)
		}
	}

	s1 := rows[1]
	if s1.Published != 2 || s1.Received != 0 {
		t.Fatalf("unexpected second-1 row: %+v", s1)
	}
	if s1.DeliveredRatio == nil || *s1.DeliveredRatio != 0.5 {
		t.Fatalf("second-1 ratio should be 1/2, got %v", s1.DeliveredRatio)
	}

	s2 := rows[2]
	if s2.Published != 1 || s2.Received != 1 {
		t.Fatalf("unexpected second-2 row: %+v", s2)
	}
	if s2.DeliveredRatio == nil || *s2.DeliveredRatio != 1.0 {
		t.Fatalf("second-2 ratio should be 1, got %v", s2.DeliveredRatio)
	}

	s5 := rows[5]
	if s5.Published != 0 || s5.Received != 1 {
		t.Fatalf("unexpected second-5 row: %+v", s5)
	}
	if s5.DeliveredRatio != nil {
		t.Fatalf("receive-only bucket must have absent ratio, got %v", *s5.DeliveredRatio)
	}
}

func TestCompute_WindowBounds(t *testing.T) {
	pubs := []types.PublishEvent{pub(2, 2000), pub(1, 1000)}
	recvs := []types.ReceiveEvent{recv(1, 10, 1000, 1010), recv(2, 10, 2000, 2010)}
	st := Compute(topic, pubs, recvs).Stats
	if st.Time.FirstPubTsMs == nil || *st.Time.FirstPubTsMs != 1000 {
		t.Fatalf("expected first_pub_ts_ms 1000, got %v", st.Time.FirstPubTsMs)
	}
	if st.Time.LastRecvTsMs == nil || *st.Time.LastRecvTsMs != 2010 {
		t.Fatalf("expected last_recv_ts_ms 2010, got %v", st.Time.LastRecvTsMs)
	}
}

func TestCompute_MeanOfFilteredSet(t *testing.T) {
	recvs := []types.ReceiveEvent{recv(1, 1, 0, 1), recv(2, 2, 0, 2), recv(3, -100, 0, 0)}
	st := Compute(topic, nil, recvs).Stats
	if st.Latency.Mean == nil || math.Abs(*st.Latency.Mean-1.5) > 1e-12 {
		t.Fatalf("expected mean 1.5 over non-negative set, got %v", st.Latency.Mean)
	}
}

func recvsFromLatencies(lats []float64) []types.ReceiveEvent {
	out := make([]types.ReceiveEvent, len(lats))
	for i, l := range lats {
		out[i] = recv(int64(i+1), int64(l), int64(i)*1000, int64(i)*1000+int64(l))
	}
	return out
}
