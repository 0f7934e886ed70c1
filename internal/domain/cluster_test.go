package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowEnd = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

func makeRecords(n int, category, location, area string, at time.Time) []SignalRecord {
	records := make([]SignalRecord, n)
	for i := range records {
		records[i] = SignalRecord{
			ID:         fmt.Sprintf("%s-%d", category, i),
			Category:   category,
			Location:   location,
			Area:       area,
			OccurredAt: at,
		}
	}
	return records
}

func TestNormalizeLocation(t *testing.T) {
	t.Run("house number rounds to hundred block", func(t *testing.T) {
		key, ok := NormalizeLocation("123 Main St")
		require.True(t, ok)
		assert.Equal(t, "100 main st", key)
	})

	t.Run("same block same key", func(t *testing.T) {
		a, ok := NormalizeLocation("123 Main St")
		require.True(t, ok)
		b, ok := NormalizeLocation("145 MAIN ST.")
		require.True(t, ok)
		assert.Equal(t, a, b)
	})

	t.Run("intersection keys on cleaned text", func(t *testing.T) {
		key, ok := NormalizeLocation("  Bedford Ave & North 7th St ")
		require.True(t, ok)
		assert.Equal(t, "bedford ave & north 7th st", key)
	})

	t.Run("empty location is unusable", func(t *testing.T) {
		_, ok := NormalizeLocation("   ")
		assert.False(t, ok)
	})

	t.Run("punctuation only is unusable", func(t *testing.T) {
		_, ok := NormalizeLocation("...")
		assert.False(t, ok)
	})
}

func TestDisplayLocation(t *testing.T) {
	assert.Equal(t, "100 Block Of Main St", DisplayLocation("100 main st"))
	assert.Equal(t, "Bedford Ave & North 7th St", DisplayLocation("bedford ave & north 7th st"))
}

func TestClassifySeverity(t *testing.T) {
	cfg := DefaultClusterConfig() // threshold 5: medium ≥ 7.5, high ≥ 15

	tests := []struct {
		count int
		want  Severity
	}{
		{5, SeverityLow},
		{7, SeverityLow},
		{8, SeverityMedium},
		{14, SeverityMedium},
		{15, SeverityHigh},
		{40, SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySeverity(tt.count, cfg), "count=%d", tt.count)
	}
}

func TestSeverityOrdering(t *testing.T) {
	cfg := DefaultClusterConfig()

	// Severity never decreases as count grows.
	prev := SeverityLow
	for count := cfg.Threshold; count <= 4*cfg.Threshold; count++ {
		s := ClassifySeverity(count, cfg)
		assert.True(t, s.AtLeast(prev), "severity regressed at count=%d", count)
		prev = s
	}
}

func TestClassifyTrend(t *testing.T) {
	cfg := DefaultClusterConfig()

	t.Run("baseline of four", func(t *testing.T) {
		assert.Equal(t, TrendSpike, ClassifyTrend(9, 4, true, cfg))    // ≥ 2×
		assert.Equal(t, TrendElevated, ClassifyTrend(5, 4, true, cfg)) // ≥ 1.2×, < 2×
		assert.Equal(t, TrendNormal, ClassifyTrend(4, 4, true, cfg))
	})

	t.Run("no baseline defaults to elevated", func(t *testing.T) {
		assert.Equal(t, TrendElevated, ClassifyTrend(50, 0, false, cfg))
	})
}

func TestBaselineCounts(t *testing.T) {
	cfg := DefaultClusterConfig()
	windowLen := 24 * time.Hour
	windowStart := windowEnd.Add(-windowLen)

	var records []SignalRecord
	// 8 occurrences of the key spread over the 4 baseline windows → mean 2.
	for i := 0; i < 8; i++ {
		at := windowStart.Add(-time.Duration(i%4)*windowLen - time.Hour)
		records = append(records, SignalRecord{
			ID: fmt.Sprintf("b-%d", i), Category: "Noise - Commercial",
			Location: "123 Main St", OccurredAt: at,
		})
	}
	// Records inside the current window must not leak into the baseline.
	records = append(records, makeRecords(3, "Noise - Commercial", "123 Main St", "", windowStart.Add(time.Hour))...)
	// Records older than the baseline horizon are ignored.
	records = append(records, SignalRecord{
		ID: "too-old", Category: "Noise - Commercial", Location: "123 Main St",
		OccurredAt: windowStart.Add(-10 * windowLen),
	})

	baseline := BaselineCounts(records, windowStart, windowLen, 4, cfg)

	key := ClusterKey{Location: "100 main st", Category: "Noise - Commercial"}
	require.Contains(t, baseline, key)
	assert.InDelta(t, 2.0, baseline[key], 1e-9)
}

func TestBuildClusters(t *testing.T) {
	cfg := DefaultClusterConfig()
	windowStart := windowEnd.Add(-24 * time.Hour)
	at := windowStart.Add(2 * time.Hour)

	t.Run("below threshold never clusters", func(t *testing.T) {
		records := makeRecords(cfg.Threshold-1, "Noise - Commercial", "123 Main St", "greenpoint", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		assert.Empty(t, clusters)
	})

	t.Run("crossing threshold makes the cluster eligible", func(t *testing.T) {
		records := makeRecords(cfg.Threshold, "Noise - Commercial", "123 Main St", "greenpoint", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		require.Len(t, clusters, 1)
		assert.Equal(t, cfg.Threshold, clusters[0].Count())
	})

	t.Run("seven noise complaints on one block with baseline two", func(t *testing.T) {
		// Threshold 5: medium needs ≥ 7.5, high needs ≥ 15, so 7 stays low.
		// Baseline 2: 7 ≥ 2×2 → spike.
		records := makeRecords(7, "Noise - Commercial", "123 Main St", "greenpoint", at)
		baseline := map[ClusterKey]float64{
			{Location: "100 main st", Category: "Noise - Commercial"}: 2,
		}

		clusters := BuildClusters(records, windowStart, windowEnd, baseline, cfg)

		require.Len(t, clusters, 1)
		c := clusters[0]
		assert.Equal(t, 7, c.Count())
		assert.Equal(t, SeverityLow, c.Severity)
		assert.Equal(t, TrendSpike, c.Trend)
		assert.Equal(t, "100 Block Of Main St", c.DisplayLocation)
		assert.Equal(t, "greenpoint", c.TargetID)
	})

	t.Run("unusable locations are excluded, not pooled", func(t *testing.T) {
		records := makeRecords(10, "Noise - Commercial", "", "greenpoint", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		assert.Empty(t, clusters)
	})

	t.Run("records outside the window are dropped", func(t *testing.T) {
		skewed := makeRecords(10, "Noise - Commercial", "123 Main St", "greenpoint", windowEnd.Add(time.Hour))
		clusters := BuildClusters(skewed, windowStart, windowEnd, nil, cfg)
		assert.Empty(t, clusters)
	})

	t.Run("missing category drops without a default", func(t *testing.T) {
		records := makeRecords(10, "", "123 Main St", "greenpoint", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		assert.Empty(t, clusters)
	})

	t.Run("missing category folds into configured default", func(t *testing.T) {
		withDefault := cfg
		withDefault.DefaultCategory = "unclassified"
		records := makeRecords(10, "", "123 Main St", "greenpoint", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, withDefault)
		require.Len(t, clusters, 1)
		assert.Equal(t, "unclassified", clusters[0].Category)
	})

	t.Run("no baseline reads elevated not spike", func(t *testing.T) {
		records := makeRecords(6, "Illegal Parking", "200 Oak Ave", "ridgewood", at)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		require.Len(t, clusters, 1)
		assert.Equal(t, TrendElevated, clusters[0].Trend)
	})

	t.Run("output order is deterministic", func(t *testing.T) {
		records := append(
			makeRecords(5, "Noise - Commercial", "900 Zebra St", "a", at),
			makeRecords(5, "Noise - Commercial", "100 Apple St", "b", at)...,
		)
		clusters := BuildClusters(records, windowStart, windowEnd, nil, cfg)
		require.Len(t, clusters, 2)
		assert.Equal(t, "100 apple st", clusters[0].Key.Location)
		assert.Equal(t, "900 zebra st", clusters[1].Key.Location)
	})
}
