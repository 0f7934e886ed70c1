// Package pipeline orchestrates the signal-to-story batch jobs: detection,
// target resolution, narrative generation, and idempotent publication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/couchcryptid/signal-story-pipeline/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrUnknownJob is returned for a run request naming no registered job.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobBusy is returned when the named job already has a run in flight.
	ErrJobBusy = errors.New("job already running")
)

// Ingestor fetches raw signal records from an upstream dataset.
type Ingestor interface {
	Fetch(ctx context.Context, dataset string, since time.Time, limit int) domain.FetchResult
}

// NarrativeGenerator turns a story context into publishable text. A nil
// narrative with a nil error means the generator declined; the item is
// skipped, not failed.
type NarrativeGenerator interface {
	Generate(ctx context.Context, sc domain.StoryContext) (*domain.Narrative, error)
}

// TargetRegistry answers canonical target existence checks.
type TargetRegistry interface {
	Exists(ctx context.Context, canonicalID string) (bool, error)
}

// PublicationStore persists publication records keyed by identity key.
type PublicationStore interface {
	FindByIdentityKey(ctx context.Context, identityKey string) (*domain.PublicationRecord, error)
	Insert(ctx context.Context, rec *domain.PublicationRecord) error
}

// RunLog records one summary per batch execution.
type RunLog interface {
	Append(ctx context.Context, summary domain.RunSummary) error
}

// RunOptions carries per-trigger overrides.
type RunOptions struct {
	WindowDays     int    // 0 = the domain's configured window
	TargetOverride string // restrict processing to one logical target
	Sample         bool   // use the job's sample strategy when it has one
}

// Job binds a registered name to its detection strategies. Domain names the
// identity-key namespace.
type Job struct {
	Name           string
	Domain         string
	Strategy       DetectionStrategy
	SampleStrategy DetectionStrategy
}

// CoordinatorConfig carries the scheduling knobs.
type CoordinatorConfig struct {
	TimeBudget     time.Duration
	BatchDelay     time.Duration
	Concurrency    int
	CoveredTargets []string
}

// Coordinator owns the job registry and runs the per-item core loop. One run
// per job at a time; items inside a run execute in bounded concurrent batches
// with a fixed delay between batches to stay polite to downstream services.
type Coordinator struct {
	jobs      map[string]*Job
	generator NarrativeGenerator
	resolver  *Resolver
	publisher *Publisher
	runLog    RunLog
	covered   map[string]bool // nil = everything covered

	concurrency int
	batchDelay  time.Duration
	timeBudget  time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	busyMu sync.Mutex
	busy   map[string]*sync.Mutex
}

// NewCoordinator wires the coordinator. Register jobs before serving triggers.
func NewCoordinator(
	generator NarrativeGenerator,
	resolver *Resolver,
	publisher *Publisher,
	runLog RunLog,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
	cfg CoordinatorConfig,
) *Coordinator {
	var covered map[string]bool
	if len(cfg.CoveredTargets) > 0 {
		covered = make(map[string]bool, len(cfg.CoveredTargets))
		for _, t := range cfg.CoveredTargets {
			covered[Slugify(t)] = true
		}
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		jobs:        make(map[string]*Job),
		generator:   generator,
		resolver:    resolver,
		publisher:   publisher,
		runLog:      runLog,
		covered:     covered,
		concurrency: concurrency,
		batchDelay:  cfg.BatchDelay,
		timeBudget:  cfg.TimeBudget,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		busy:        make(map[string]*sync.Mutex),
	}
}

// Register adds a job to the registry, replacing any previous registration
// under the same name.
func (c *Coordinator) Register(job *Job) {
	c.jobs[job.Name] = job
}

// Has reports whether a job name is registered.
func (c *Coordinator) Has(name string) bool {
	_, ok := c.jobs[name]
	return ok
}

// RunJob executes one batch for the named job. Per-item failures are recorded
// in the summary and never abort the run; the returned error is reserved for
// pre-run conditions (unknown name, concurrent run). A summary is appended to
// the run log on every path that starts a run, including detection failure.
func (c *Coordinator) RunJob(ctx context.Context, name string, opts RunOptions) (domain.RunSummary, error) {
	job, ok := c.jobs[name]
	if !ok {
		return domain.RunSummary{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	lock := c.lockFor(name)
	if !lock.TryLock() {
		return domain.RunSummary{}, fmt.Errorf("%w: %s", ErrJobBusy, name)
	}
	defer lock.Unlock()

	now := c.clock.Now().UTC()
	deadline := now.Add(c.timeBudget)
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		JobName:   name,
		StartedAt: now,
	}
	c.logger.Info("run started", "job", name, "run_id", summary.RunID,
		"sample", opts.Sample, "target_override", opts.TargetOverride)

	strategy := job.Strategy
	if opts.Sample && job.SampleStrategy != nil {
		strategy = job.SampleStrategy
	}

	det, err := strategy.Detect(ctx, now, opts)
	if err != nil {
		// Detection failing wholesale means the core loop never ran, which
		// is the one thing that marks a run unsuccessful.
		summary.Errors = append(summary.Errors, fmt.Sprintf("detection: %v", err))
		c.finalize(ctx, &summary, false)
		return summary, nil
	}
	summary.RecordsScanned = det.RecordsScanned
	summary.ClustersDetected = det.ClustersDetected
	summary.EventsDetected = det.EventsDetected
	summary.Warnings = append(summary.Warnings, det.Warnings...)
	c.metrics.RecordsScanned.WithLabelValues(name).Add(float64(det.RecordsScanned))
	c.metrics.ClustersDetected.WithLabelValues(name).Add(float64(det.ClustersDetected))
	c.metrics.EventsDetected.WithLabelValues(name).Add(float64(det.EventsDetected))

	contexts := det.Contexts
	if opts.TargetOverride != "" {
		want := Slugify(opts.TargetOverride)
		filtered := contexts[:0]
		for _, sc := range contexts {
			if Slugify(sc.TargetID) == want {
				filtered = append(filtered, sc)
			}
		}
		contexts = filtered
	}

	for start := 0; start < len(contexts); start += c.concurrency {
		if !c.clock.Now().Before(deadline) {
			summary.BudgetExhausted = true
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("time budget exhausted with %d of %d items unprocessed", len(contexts)-start, len(contexts)))
			c.metrics.BudgetExhausted.WithLabelValues(name).Inc()
			break
		}

		end := min(start+c.concurrency, len(contexts))
		batch := contexts[start:end]
		outcomes := make([]itemOutcome, len(batch))

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = c.processItem(ctx, job, batch[i], now)
			}(i)
		}
		wg.Wait()

		for i, out := range outcomes {
			c.applyOutcome(&summary, name, batch[i], out)
		}

		if end < len(contexts) {
			c.sleep(ctx, c.batchDelay)
		}
	}

	c.finalize(ctx, &summary, true)
	return summary, nil
}

type itemOutcome struct {
	generated  bool
	published  bool
	skipReason string
	err        error
}

// processItem runs one story context through resolve, dedupe, generate, and
// publish. Every failure mode returns an outcome; nothing here panics a run.
func (c *Coordinator) processItem(ctx context.Context, job *Job, sc domain.StoryContext, runDate time.Time) itemOutcome {
	canonical, err := c.resolver.Resolve(ctx, sc.TargetID)
	if errors.Is(err, ErrTargetNotFound) {
		return itemOutcome{skipReason: "target_not_found"}
	}
	if err != nil {
		return itemOutcome{err: err}
	}
	if c.covered != nil && !c.covered[canonical] {
		return itemOutcome{skipReason: "not_covered"}
	}

	key := domain.IdentityKey(job.Domain, canonical, runDate, sc.Distinguisher())
	published, err := c.publisher.AlreadyPublished(ctx, key)
	if err != nil {
		return itemOutcome{err: err}
	}
	if published {
		return itemOutcome{skipReason: "already_published"}
	}

	narrative, err := c.generator.Generate(ctx, sc)
	if err != nil {
		c.metrics.NarrativeRequests.WithLabelValues("error").Inc()
		return itemOutcome{err: fmt.Errorf("narrative: %w", err)}
	}
	if narrative == nil {
		c.metrics.NarrativeRequests.WithLabelValues("empty").Inc()
		return itemOutcome{skipReason: "no_narrative"}
	}
	c.metrics.NarrativeRequests.WithLabelValues("story").Inc()

	candidate := domain.StoryCandidate{
		TargetID:      sc.TargetID,
		Headline:      narrative.Headline,
		PreviewText:   narrative.PreviewText,
		Body:          narrative.Body,
		CategoryLabel: sc.CategoryLabel,
		IdentityKey:   key,
		Priority:      sc.Priority,
	}
	outcome, err := c.publisher.Publish(ctx, candidate, canonical)
	if err != nil {
		return itemOutcome{generated: true, err: fmt.Errorf("publish: %w", err)}
	}
	if outcome == PublishAlreadyExists {
		return itemOutcome{generated: true, skipReason: "already_published"}
	}
	return itemOutcome{generated: true, published: true}
}

func (c *Coordinator) applyOutcome(summary *domain.RunSummary, jobName string, sc domain.StoryContext, out itemOutcome) {
	if out.generated {
		summary.StoriesGenerated++
	}
	switch {
	case out.err != nil:
		summary.Errors = append(summary.Errors, fmt.Sprintf("target %s: %v", sc.TargetID, out.err))
		c.metrics.ItemErrors.WithLabelValues(jobName).Inc()
	case out.published:
		summary.StoriesPublished++
		c.metrics.StoriesPublished.WithLabelValues(jobName).Inc()
	default:
		summary.StoriesSkipped++
		c.metrics.StoriesSkipped.WithLabelValues(jobName, out.skipReason).Inc()
	}
}

// finalize stamps the summary, records run metrics, and appends to the run
// log. The run log is best effort; a failed append is logged, never fatal.
func (c *Coordinator) finalize(ctx context.Context, summary *domain.RunSummary, coreCompleted bool) {
	summary.CompletedAt = c.clock.Now().UTC()
	summary.Success = coreCompleted

	outcome := "success"
	if !summary.Success {
		outcome = "failure"
	}
	c.metrics.RunsTotal.WithLabelValues(summary.JobName, outcome).Inc()
	c.metrics.RunDuration.WithLabelValues(summary.JobName).
		Observe(summary.CompletedAt.Sub(summary.StartedAt).Seconds())

	if err := c.runLog.Append(ctx, *summary); err != nil {
		c.logger.Error("run log append failed", "job", summary.JobName, "run_id", summary.RunID, "error", err)
	}
	c.logger.Info("run completed",
		"job", summary.JobName,
		"run_id", summary.RunID,
		"success", summary.Success,
		"published", summary.StoriesPublished,
		"skipped", summary.StoriesSkipped,
		"errors", len(summary.Errors),
		"budget_exhausted", summary.BudgetExhausted,
	)
}

func (c *Coordinator) lockFor(name string) *sync.Mutex {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	lock, ok := c.busy[name]
	if !ok {
		lock = &sync.Mutex{}
		c.busy[name] = lock
	}
	return lock
}

// sleep waits on the coordinator clock so tests can advance it, bailing early
// on context cancellation.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-c.clock.After(d):
	}
}
