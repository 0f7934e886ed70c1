// Command gensample generates deterministic signal-record fixtures from the
// built-in sample source and runs them through the actual clustering code, so
// fixture files and test assertions stay consistent with pipeline behavior.
//
// Usage:
//
//	go run ./cmd/gensample \
//	  -dataset ab12-cd34 \
//	  -days 1 \
//	  -out data/sample/signals_ab12-cd34.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/adapter/civicdata"
	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
)

// baseDate anchors the generator so repeated runs produce identical fixtures.
var baseDate = time.Date(2026, time.August, 31, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataset := flag.String("dataset", "sample", "dataset id to seed generation")
	days := flag.Int("days", 1, "ingestion window length in days")
	baselineWindows := flag.Int("baseline-windows", 4, "number of preceding windows to generate for the baseline")
	limit := flag.Int("limit", 2000, "record cap")
	out := flag.String("out", "", "output path for the JSON fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	source := civicdata.NewSampleSource(func() time.Time { return baseDate })
	window := time.Duration(*days) * 24 * time.Hour
	windowStart := baseDate.Add(-window)
	since := windowStart.Add(-time.Duration(*baselineWindows) * window)

	res := source.Fetch(context.Background(), *dataset, since, *limit)
	if res.SourceErr != nil {
		return fmt.Errorf("generate records: %w", res.SourceErr)
	}
	log.Printf("generated %d records for %s", len(res.Records), *dataset)

	if err := writeJSON(*out, res.Records); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	cfg := domain.DefaultClusterConfig()
	baseline := domain.BaselineCounts(res.Records, windowStart, window, *baselineWindows, cfg)
	clusters := domain.BuildClusters(res.Records, windowStart, baseDate, baseline, cfg)
	printStats(clusters)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(clusters []domain.Cluster) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Qualifying clusters: %d\n", len(clusters))
	for _, c := range clusters {
		fmt.Printf("  %s / %s: count=%d severity=%s trend=%s target=%s\n",
			c.DisplayLocation, c.Category, c.Count(), c.Severity, c.Trend, c.TargetID)
	}
}
