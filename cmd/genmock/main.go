// Command genmock writes a synthetic data directory for the verification
// service and a file of sample metric requests against it, one JSON object
// per line, ready to publish to the request topic or POST to /v1/evaluate.
//
// Usage:
//
//	go run ./cmd/genmock -out data -requests data/requests.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/adapter/fixture"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := fixture.DefaultOptions()

	out := flag.String("out", "data", "output data directory")
	requestsOut := flag.String("requests", "", "output path for sample requests (JSON lines); skipped when empty")
	gridName := flag.String("grid", defaults.Grid, "grid name used in fixture file names")
	start := flag.String("start", defaults.Start.Format(time.DateOnly), "first evaluation day (YYYY-MM-DD)")
	days := flag.Int("days", defaults.Days, "number of evaluation days")
	history := flag.Int("history-years", defaults.HistoryYears, "years of climatology history before start")
	aggDays := flag.String("agg-days", joinInts(defaults.AggDays), "comma-separated aggregation periods in days")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	flag.Parse()

	startDay, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	aggs, err := parseInts(*aggDays)
	if err != nil {
		return fmt.Errorf("invalid -agg-days: %w", err)
	}

	opts := fixture.Options{
		Grid:         *gridName,
		Start:        startDay,
		Days:         *days,
		HistoryYears: *history,
		AggDays:      aggs,
		Seed:         *seed,
	}
	written, err := fixture.Generate(*out, opts)
	if err != nil {
		return fmt.Errorf("generate fixtures: %w", err)
	}
	log.Printf("wrote %d fixture files under %s", len(written), *out)

	if *requestsOut == "" {
		return nil
	}
	reqs := sampleRequests(opts)
	if err := writeLines(*requestsOut, reqs); err != nil {
		return fmt.Errorf("writing requests: %w", err)
	}
	log.Printf("wrote %d sample requests: %s", len(reqs), *requestsOut)
	return nil
}

// sampleRequests covers each metric family against the generated datasets.
func sampleRequests(opts fixture.Options) []domain.MetricRequest {
	end := opts.Start.AddDate(0, 0, opts.Days-1)
	det := []string{"model_a", "model_b"}
	prob := []string{"ensemble_c", "quantile_d"}
	agg := opts.AggDays[0]

	base := func(metric, variable string, forecasts []string) domain.MetricRequest {
		return domain.MetricRequest{
			Metric:    metric,
			Start:     opts.Start,
			End:       end,
			Variable:  variable,
			AggDays:   agg,
			Forecasts: forecasts,
			Truth:     fixture.TruthName,
			Grid:      opts.Grid,
		}
	}

	reqs := []domain.MetricRequest{
		base("mae", "tmp2m", det),
		base("rmse", "precip", det),
		base("bias", "tmp2m", det),
		base("crps", "precip", prob),
		base("ets-5", "precip", det),
		base("acc", "tmp2m", det),
		base("seeps", "precip", det),
	}
	reqs[1].SpaceGrouping = "hemispheres"
	reqs[2].Mask = "land"
	reqs[3].TimeGrouping = "month_of_year"
	reqs[4].Region = "atlantic"
	reqs[5].Spatial = true

	skill := base("mse", "tmp2m", []string{"model_a"})
	skill.Baseline = "model_b"
	reqs = append(reqs, skill)

	for i := range reqs {
		reqs[i] = domain.NormalizeRequest(reqs[i])
		reqs[i].ID = domain.RequestID(reqs[i])
	}
	return reqs
}

func writeLines(path string, reqs []domain.MetricRequest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range reqs {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%q is not a positive integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
