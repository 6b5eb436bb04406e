package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"latencyreport/pkg/types"
)

// WriteLatencyCSV writes latency_<alias>.csv with one row per receive event,
// seq-ascending (the correlator's order). The file is written even when there
// are no receives, leaving a header-only file.
func WriteLatencyCSV(outdir, alias string, recvs []types.ReceiveEvent) (string, error) {
	path := filepath.Join(outdir, fmt.Sprintf("latency_%s.csv", alias))
	rows := make([][]string, 0, len(recvs))
	for _, r := range recvs {
		rows = append(rows, []string{
			strconv.FormatInt(r.Seq, 10),
			strconv.FormatInt(r.LatencyMs, 10),
			strconv.FormatInt(r.PubTsMs, 10),
			strconv.FormatInt(r.RecvTsMs, 10),
		})
	}
	if err := writeCSV(path, []string{"seq", "latency_ms", "pub_ts_ms", "recv_ts_ms"}, rows); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMissingCSV writes latency_<alias>_missing.csv. Returns "" without
// creating a file when nothing is missing.
func WriteMissingCSV(outdir, alias string, missing []types.MissingRecord) (string, error) {
	if len(missing) == 0 {
		return "", nil
	}
	path := filepath.Join(outdir, fmt.Sprintf("latency_%s_missing.csv", alias))
	rows := make([][]string, 0, len(missing))
	for _, m := range missing {
		rows = append(rows, []string{
			strconv.FormatInt(m.Seq, 10),
			strconv.FormatInt(m.PubTsMs, 10),
		})
	}
	if err := writeCSV(path, []string{"seq", "pub_ts_ms"}, rows); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRateCSV writes rate_<alias>.csv covering the union of active second
// buckets. The ratio column is blank for buckets without publishes.
func WriteRateCSV(outdir, alias string, rate []types.RateRow) (string, error) {
	path := filepath.Join(outdir, fmt.Sprintf("rate_%s.csv", alias))
	rows := make([][]string, 0, len(rate))
	for _, row := range rate {
		ratio := ""
		if row.DeliveredRatio != nil {
			ratio = strconv.FormatFloat(*row.DeliveredRatio, 'g', -1, 64)
		}
		rows = append(rows, []string{
			strconv.FormatInt(row.SecondUnix, 10),
			strconv.Itoa(row.Published),
			strconv.Itoa(row.Received),
			ratio,
		})
	}
	if err := writeCSV(path, []string{"second_unix", "published", "received", "delivered_ratio"}, rows); err != nil {
		return "", err
	}
	return path, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
