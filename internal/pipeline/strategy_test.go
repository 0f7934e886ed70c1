package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/config"
	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/couchcryptid/signal-story-pipeline/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngestor struct {
	result domain.FetchResult

	dataset string
	since   time.Time
	limit   int
}

func (f *fakeIngestor) Fetch(_ context.Context, dataset string, since time.Time, limit int) domain.FetchResult {
	f.dataset = dataset
	f.since = since
	f.limit = limit
	return f.result
}

func complaintsDomain() config.SignalDomain {
	return config.SignalDomain{
		Name:            "complaints",
		Dataset:         "ab12-cd34",
		WindowDays:      1,
		FetchLimit:      2000,
		Threshold:       5,
		BaselineWindows: 4,
		CategoryLabel:   "Quality of Life",
	}
}

func recordsAt(n int, at time.Time, location, category string) []domain.SignalRecord {
	out := make([]domain.SignalRecord, n)
	for i := range out {
		out[i] = domain.SignalRecord{
			ID:         location + category + at.Format(time.RFC3339) + string(rune('a'+i)),
			Category:   category,
			Location:   location,
			Area:       "Greenpoint",
			OccurredAt: at,
		}
	}
	return out
}

func TestClusterStrategy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	logger := slog.New(slog.DiscardHandler)

	t.Run("fetches the window plus baseline history", func(t *testing.T) {
		ingestor := &fakeIngestor{}
		s := NewClusterStrategy(complaintsDomain(), ingestor, observability.NewMetricsForTesting(), logger)

		_, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Equal(t, "ab12-cd34", ingestor.dataset)
		assert.Equal(t, 2000, ingestor.limit)
		// 1 current window + 4 baseline windows, 1 day each.
		assert.Equal(t, now.AddDate(0, 0, -5), ingestor.since)
	})

	t.Run("window override widens the fetch", func(t *testing.T) {
		ingestor := &fakeIngestor{}
		s := NewClusterStrategy(complaintsDomain(), ingestor, observability.NewMetricsForTesting(), logger)

		_, err := s.Detect(ctx, now, RunOptions{WindowDays: 3})

		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, -15), ingestor.since)
	})

	t.Run("clusters and consolidates the current window", func(t *testing.T) {
		var records []domain.SignalRecord
		records = append(records, recordsAt(7, now.Add(-2*time.Hour), "123 Main St", "noise")...)
		for day := 1; day <= 4; day++ {
			records = append(records,
				recordsAt(2, now.AddDate(0, 0, -day).Add(-2*time.Hour), "123 Main St", "noise")...)
		}
		ingestor := &fakeIngestor{result: domain.FetchResult{Records: records}}
		s := NewClusterStrategy(complaintsDomain(), ingestor, observability.NewMetricsForTesting(), logger)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Equal(t, 15, det.RecordsScanned)
		assert.Equal(t, 1, det.ClustersDetected)
		require.Len(t, det.Contexts, 1)

		sc := det.Contexts[0]
		assert.Equal(t, "complaints", sc.Domain)
		assert.Equal(t, "cluster", sc.Kind)
		assert.Equal(t, "Greenpoint", sc.TargetID)
		assert.Equal(t, "Quality of Life", sc.CategoryLabel)
		require.Len(t, sc.Clusters, 1)
		assert.Equal(t, 7, sc.Clusters[0].Count())
		assert.Equal(t, domain.TrendSpike, sc.Clusters[0].Trend)
	})

	t.Run("degraded source clusters the partial result and warns", func(t *testing.T) {
		ingestor := &fakeIngestor{result: domain.FetchResult{
			Records:   recordsAt(6, now.Add(-time.Hour), "123 Main St", "noise"),
			SourceErr: errors.New("status 502"),
		}}
		s := NewClusterStrategy(complaintsDomain(), ingestor, observability.NewMetricsForTesting(), logger)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Equal(t, 1, det.ClustersDetected)
		require.Len(t, det.Warnings, 1)
		assert.Contains(t, det.Warnings[0], "ingestion degraded for ab12-cd34")
	})

	t.Run("quiet window yields nothing", func(t *testing.T) {
		ingestor := &fakeIngestor{}
		s := NewClusterStrategy(complaintsDomain(), ingestor, observability.NewMetricsForTesting(), logger)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Zero(t, det.RecordsScanned)
		assert.Empty(t, det.Contexts)
	})
}

func TestCalendarStrategy(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	events := []domain.EventDefinition{{
		Name:              "Autumn Street Fair",
		Month:             time.September,
		ApproxWeekOfMonth: 2,
		DurationDays:      7,
		Targets:           []string{"greenpoint", "williamsburg"},
		Category:          "Events",
	}}
	s := NewCalendarStrategy("events", events, logger)

	t.Run("live event emits hero contexts per target", func(t *testing.T) {
		// Week 2 of September 2026 starts on the 8th.
		now := time.Date(2026, 9, 10, 6, 0, 0, 0, time.UTC)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Equal(t, 1, det.EventsDetected)
		require.Len(t, det.Contexts, 2)
		for _, sc := range det.Contexts {
			assert.Equal(t, "events", sc.Domain)
			assert.Equal(t, "event", sc.Kind)
			assert.Equal(t, domain.StateLive, sc.State)
			assert.Equal(t, domain.PriorityHero, sc.Priority)
			assert.Equal(t, "Events", sc.CategoryLabel)
			require.NotNil(t, sc.Event)
			assert.Equal(t, "Autumn Street Fair", sc.Event.Name)
		}
	})

	t.Run("preview event runs standard priority", func(t *testing.T) {
		now := time.Date(2026, 9, 3, 6, 0, 0, 0, time.UTC)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		require.Len(t, det.Contexts, 2)
		assert.Equal(t, domain.StatePreview, det.Contexts[0].State)
		assert.Equal(t, domain.PriorityStandard, det.Contexts[0].Priority)
	})

	t.Run("dormant event emits nothing", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)

		det, err := s.Detect(ctx, now, RunOptions{})

		require.NoError(t, err)
		assert.Zero(t, det.EventsDetected)
		assert.Empty(t, det.Contexts)
	})
}

func TestEventDefinitionsFromConfig(t *testing.T) {
	defs := EventDefinitionsFromConfig([]config.CalendarEvent{{
		Name:         "Design Week",
		Month:        5,
		Week:         3,
		DurationDays: 5,
		Targets:      []string{"dumbo"},
		Category:     "Culture",
		Description:  "Annual design showcase",
	}})

	require.Len(t, defs, 1)
	assert.Equal(t, "Design Week", defs[0].Name)
	assert.Equal(t, time.May, defs[0].Month)
	assert.Equal(t, 3, defs[0].ApproxWeekOfMonth)
	assert.Equal(t, 5, defs[0].DurationDays)
	assert.Equal(t, []string{"dumbo"}, defs[0].Targets)
}
