package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/config"
	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/couchcryptid/signal-story-pipeline/internal/observability"
)

// Detection is the output of one detection pass: the story contexts to carry
// forward plus the counters the run summary reports.
type Detection struct {
	RecordsScanned   int
	ClustersDetected int
	EventsDetected   int
	Contexts         []domain.StoryContext
	Warnings         []string
}

// DetectionStrategy produces story contexts for one job at a given instant.
type DetectionStrategy interface {
	Detect(ctx context.Context, now time.Time, opts RunOptions) (Detection, error)
}

// ClusterStrategy runs the statistical path for one signal domain: fetch a
// window of records plus enough history for the baseline, cluster, classify,
// and consolidate per target.
type ClusterStrategy struct {
	domainCfg  config.SignalDomain
	clusterCfg domain.ClusterConfig
	source     Ingestor
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClusterStrategy builds a strategy from the domain's YAML configuration,
// layering its overrides onto the reference clustering constants.
func NewClusterStrategy(dc config.SignalDomain, source Ingestor, metrics *observability.Metrics, logger *slog.Logger) *ClusterStrategy {
	cc := domain.DefaultClusterConfig()
	cc.Threshold = dc.Threshold
	cc.BaselineWindows = dc.BaselineWindows
	cc.DefaultCategory = dc.DefaultCategory
	return &ClusterStrategy{
		domainCfg:  dc,
		clusterCfg: cc,
		source:     source,
		metrics:    metrics,
		logger:     logger,
	}
}

// Detect fetches (BaselineWindows+1) windows of records in one call. A source
// error does not abort the run; whatever was retrieved is clustered and the
// degradation lands in the summary's warnings.
func (s *ClusterStrategy) Detect(ctx context.Context, now time.Time, opts RunOptions) (Detection, error) {
	window := s.domainCfg.Window()
	if opts.WindowDays > 0 {
		window = time.Duration(opts.WindowDays) * 24 * time.Hour
	}
	windowStart := now.Add(-window)
	since := windowStart.Add(-time.Duration(s.clusterCfg.BaselineWindows) * window)

	fetchStart := time.Now()
	res := s.source.Fetch(ctx, s.domainCfg.Dataset, since, s.domainCfg.FetchLimit)
	s.metrics.IngestDuration.WithLabelValues(s.domainCfg.Dataset).
		Observe(time.Since(fetchStart).Seconds())

	det := Detection{RecordsScanned: len(res.Records)}
	switch {
	case res.SourceErr == nil:
		s.metrics.IngestRequests.WithLabelValues(s.domainCfg.Dataset, "success").Inc()
	case len(res.Records) > 0:
		s.metrics.IngestRequests.WithLabelValues(s.domainCfg.Dataset, "partial").Inc()
	default:
		s.metrics.IngestRequests.WithLabelValues(s.domainCfg.Dataset, "error").Inc()
	}
	if res.SourceErr != nil {
		det.Warnings = append(det.Warnings,
			fmt.Sprintf("ingestion degraded for %s: %v", s.domainCfg.Dataset, res.SourceErr))
		s.logger.Warn("ingestion degraded",
			"dataset", s.domainCfg.Dataset, "retrieved", len(res.Records), "error", res.SourceErr)
	}

	baseline := domain.BaselineCounts(res.Records, windowStart, window, s.clusterCfg.BaselineWindows, s.clusterCfg)
	clusters := domain.BuildClusters(res.Records, windowStart, now, baseline, s.clusterCfg)
	det.ClustersDetected = len(clusters)
	det.Contexts = domain.ConsolidateByTarget(clusters, s.domainCfg.Name, s.domainCfg.CategoryLabel)

	s.logger.Debug("cluster detection complete",
		"domain", s.domainCfg.Name,
		"records", det.RecordsScanned,
		"clusters", det.ClustersDetected,
		"contexts", len(det.Contexts),
	)
	return det, nil
}

// CalendarStrategy runs the dated path: resolve each recurring event's
// lifecycle state and emit one context per (active event, target).
type CalendarStrategy struct {
	domainName string
	events     []domain.EventDefinition
	logger     *slog.Logger
}

// NewCalendarStrategy builds the calendar strategy over a fixed event list.
func NewCalendarStrategy(domainName string, events []domain.EventDefinition, logger *slog.Logger) *CalendarStrategy {
	return &CalendarStrategy{domainName: domainName, events: events, logger: logger}
}

// Detect never fails: event resolution is pure date arithmetic.
func (s *CalendarStrategy) Detect(_ context.Context, now time.Time, _ RunOptions) (Detection, error) {
	var det Detection
	for i := range s.events {
		def := &s.events[i]
		state, _ := domain.ResolveState(*def, now)
		if state == domain.StateDormant {
			continue
		}
		det.EventsDetected++
		for _, target := range def.Targets {
			det.Contexts = append(det.Contexts, domain.StoryContext{
				Domain:        s.domainName,
				Kind:          "event",
				TargetID:      target,
				CategoryLabel: def.Category,
				Priority:      state.Priority(),
				Event:         def,
				State:         state,
			})
		}
		s.logger.Debug("event active", "event", def.Name, "state", state, "targets", len(def.Targets))
	}
	return det, nil
}

// EventDefinitionsFromConfig converts the YAML event entries into domain
// definitions.
func EventDefinitionsFromConfig(events []config.CalendarEvent) []domain.EventDefinition {
	defs := make([]domain.EventDefinition, 0, len(events))
	for _, ev := range events {
		defs = append(defs, domain.EventDefinition{
			Name:              ev.Name,
			Month:             time.Month(ev.Month),
			ApproxWeekOfMonth: ev.Week,
			DurationDays:      ev.DurationDays,
			Targets:           ev.Targets,
			Category:          ev.Category,
			Description:       ev.Description,
		})
	}
	return defs
}
