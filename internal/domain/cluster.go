package domain

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ClusterConfig carries the per-domain clustering constants. Severity and
// trend boundaries are explicit here so tests can state them next to their
// expectations instead of re-deriving them from prose.
type ClusterConfig struct {
	Threshold        int     // minimum cluster size to qualify
	HighMultiplier   float64 // severity high at count ≥ HighMultiplier × Threshold
	MediumMultiplier float64 // severity medium at count ≥ MediumMultiplier × Threshold
	SpikeRatio       float64 // trend spike at count ≥ SpikeRatio × baseline
	ElevatedRatio    float64 // trend elevated at count ≥ ElevatedRatio × baseline
	BaselineWindows  int     // preceding equal-length windows feeding the baseline mean
	DefaultCategory  string  // fallback for records with no category; empty = drop them
}

// DefaultClusterConfig returns the reference constants.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Threshold:        5,
		HighMultiplier:   3.0,
		MediumMultiplier: 1.5,
		SpikeRatio:       2.0,
		ElevatedRatio:    1.2,
		BaselineWindows:  4,
	}
}

var (
	// houseNumberRe captures a leading house number for hundred-block rounding.
	houseNumberRe = regexp.MustCompile(`^(\d+)\s+(.+)$`)

	// locationPunctRe strips punctuation that varies between spellings of the
	// same address ("Main St." vs "Main St").
	locationPunctRe = regexp.MustCompile(`[.,#'"()]`)
)

// NormalizeLocation reduces a free-text location to a coarse block-level
// grouping key. Returns ok=false when the location is missing or cannot be
// reduced to anything usable.
func NormalizeLocation(raw string) (key string, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = locationPunctRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}

	if m := houseNumberRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			block := (n / 100) * 100
			return strconv.Itoa(block) + " " + m[2], true
		}
	}

	// Intersections and named places group on the cleaned string itself.
	return s, true
}

// DisplayLocation renders a grouping key as a human-readable title-cased
// street or intersection, distinct from the raw key.
func DisplayLocation(key string) string {
	words := strings.Fields(key)
	for i, w := range words {
		if w == "" || (w[0] >= '0' && w[0] <= '9') {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	s := strings.Join(words, " ")
	if m := houseNumberRe.FindStringSubmatch(s); m != nil {
		return m[1] + " Block Of " + m[2]
	}
	return s
}

// ClassifySeverity is the step function over cluster size.
func ClassifySeverity(count int, cfg ClusterConfig) Severity {
	c := float64(count)
	t := float64(cfg.Threshold)
	switch {
	case c >= cfg.HighMultiplier*t:
		return SeverityHigh
	case c >= cfg.MediumMultiplier*t:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ClassifyTrend compares the current count against the baseline mean.
// hasBaseline=false (the key has never appeared before) defaults to elevated.
func ClassifyTrend(count int, baseline float64, hasBaseline bool, cfg ClusterConfig) Trend {
	if !hasBaseline {
		return TrendElevated
	}
	c := float64(count)
	switch {
	case c >= cfg.SpikeRatio*baseline:
		return TrendSpike
	case c >= cfg.ElevatedRatio*baseline:
		return TrendElevated
	default:
		return TrendNormal
	}
}

// BaselineCounts buckets records older than windowStart into n equal-length
// windows and returns the mean count per cluster key. Keys absent from a
// window contribute zero to that window; keys absent from every window are
// omitted entirely, which is how "no baseline exists" is represented.
func BaselineCounts(records []SignalRecord, windowStart time.Time, windowLen time.Duration, n int, cfg ClusterConfig) map[ClusterKey]float64 {
	if n <= 0 {
		return nil
	}
	earliest := windowStart.Add(-time.Duration(n) * windowLen)

	totals := make(map[ClusterKey]int)
	for _, rec := range records {
		if rec.OccurredAt.Before(earliest) || !rec.OccurredAt.Before(windowStart) {
			continue
		}
		key, ok := groupingKey(rec, cfg)
		if !ok {
			continue
		}
		totals[key]++
	}

	baseline := make(map[ClusterKey]float64, len(totals))
	for key, total := range totals {
		baseline[key] = float64(total) / float64(n)
	}
	return baseline
}

// BuildClusters groups the current window's records by (location, category),
// applies the threshold gate, and classifies severity and trend. Records
// outside [windowStart, windowEnd) or with unusable locations are excluded.
// Output order is deterministic (sorted by key).
func BuildClusters(records []SignalRecord, windowStart, windowEnd time.Time, baseline map[ClusterKey]float64, cfg ClusterConfig) []Cluster {
	groups := make(map[ClusterKey][]SignalRecord)
	for _, rec := range records {
		if rec.OccurredAt.Before(windowStart) || !rec.OccurredAt.Before(windowEnd) {
			continue
		}
		key, ok := groupingKey(rec, cfg)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], rec)
	}

	clusters := make([]Cluster, 0, len(groups))
	for key, members := range groups {
		if len(members) < cfg.Threshold {
			continue
		}
		base, hasBase := baseline[key]
		clusters = append(clusters, Cluster{
			Key:             key,
			DisplayLocation: DisplayLocation(key.Location),
			Category:        key.Category,
			Severity:        ClassifySeverity(len(members), cfg),
			Trend:           ClassifyTrend(len(members), base, hasBase, cfg),
			Members:         members,
			TargetID:        logicalTarget(members),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Key.Location != clusters[j].Key.Location {
			return clusters[i].Key.Location < clusters[j].Key.Location
		}
		return clusters[i].Key.Category < clusters[j].Key.Category
	})
	return clusters
}

// groupingKey derives the (location, category) key for one record.
func groupingKey(rec SignalRecord, cfg ClusterConfig) (ClusterKey, bool) {
	loc, ok := NormalizeLocation(rec.Location)
	if !ok {
		return ClusterKey{}, false
	}
	category := strings.TrimSpace(rec.Category)
	if category == "" {
		if cfg.DefaultCategory == "" {
			return ClusterKey{}, false
		}
		category = cfg.DefaultCategory
	}
	return ClusterKey{Location: loc, Category: category}, true
}

// logicalTarget picks the cluster's pre-resolution target: the most common
// source-tagged neighborhood among members, falling back to the normalized
// location when the source tagged nothing.
func logicalTarget(members []SignalRecord) string {
	counts := make(map[string]int)
	for _, m := range members {
		area := strings.TrimSpace(m.Area)
		if area != "" {
			counts[area]++
		}
	}
	best := ""
	for area, n := range counts {
		// Ties break lexicographically so output is stable across runs.
		if n > counts[best] || (n == counts[best] && best != "" && area < best) {
			best = area
		}
	}
	if best != "" {
		return best
	}
	if key, ok := NormalizeLocation(members[0].Location); ok {
		return key
	}
	return members[0].Location
}
