package domain

import (
	"errors"
	"time"
)

// ErrPublicationExists is returned by publication stores when an insert hits
// the identity-key uniqueness constraint. It is the expected outcome of a
// replayed publish, not a failure.
var ErrPublicationExists = errors.New("publication already exists")

// SignalRecord is one raw observed event fetched from an ingestion source.
type SignalRecord struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Location   string    `json:"location"`
	Area       string    `json:"area,omitempty"` // source-tagged neighborhood, may be empty
	OccurredAt time.Time `json:"occurred_at"`
	Entity     string    `json:"entity,omitempty"` // permit holder / license name
}

// FetchResult is the typed outcome of one ingestion fetch. An empty Records
// slice with a nil SourceErr is a legitimate quiet window; a non-nil
// SourceErr means the source degraded and whatever was retrieved is partial.
type FetchResult struct {
	Records   []SignalRecord
	SourceErr error
}

// Severity classifies a cluster's size relative to the domain threshold.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// rank orders severities Low < Medium < High.
func (s Severity) rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.rank() >= other.rank() }

// Trend classifies a cluster's current size relative to its historical baseline.
type Trend string

const (
	TrendNormal   Trend = "normal"
	TrendElevated Trend = "elevated"
	TrendSpike    Trend = "spike"
)

// ClusterKey is the grouping key for signal records within a window.
type ClusterKey struct {
	Location string // normalized block-level location
	Category string
}

// Cluster is a group of signal records sharing a normalized (location,
// category) key within the ingestion window. Count is derived from Members,
// never stored, so the count/members invariant holds by construction.
type Cluster struct {
	Key             ClusterKey
	DisplayLocation string
	Category        string
	Severity        Severity
	Trend           Trend
	Members         []SignalRecord
	TargetID        string // logical target (neighborhood), pre-resolution
}

// Count returns the cluster size.
func (c Cluster) Count() int { return len(c.Members) }

// StoryPriority controls downstream display ordering.
type StoryPriority string

const (
	PriorityStandard StoryPriority = "standard"
	PriorityHero     StoryPriority = "hero"
)

// StoryContext is the detection output handed to the narrative generator:
// either a cluster bundle or a calendar event occurrence for one target.
type StoryContext struct {
	Domain        string
	Kind          string // "cluster" or "event"
	TargetID      string // logical, pre-resolution
	CategoryLabel string
	Priority      StoryPriority

	// Cluster detections. Roundup is true when several qualifying clusters
	// for the same target were consolidated into one story.
	Clusters []Cluster
	Roundup  bool

	// Calendar detections.
	Event *EventDefinition
	State EventState
}

// Distinguisher returns the context-specific component of the identity key.
func (sc StoryContext) Distinguisher() string {
	if sc.Kind == "event" && sc.Event != nil {
		return sc.Event.Name + "|" + string(sc.State)
	}
	if sc.Roundup {
		return "roundup"
	}
	if len(sc.Clusters) == 1 {
		return sc.Clusters[0].Category + "|" + sc.Clusters[0].Key.Location
	}
	return "cluster"
}

// Narrative is the generated story text. A nil Narrative from a generator is
// a valid "could not produce a story" outcome.
type Narrative struct {
	Headline    string `json:"headline"`
	PreviewText string `json:"preview_text"`
	Body        string `json:"body"`
}

// StoryCandidate is the unit handed to the publisher.
type StoryCandidate struct {
	TargetID      string // logical
	Headline      string
	PreviewText   string
	Body          string
	CategoryLabel string
	IdentityKey   string
	Priority      StoryPriority
}

// PublicationRecord is the durable output. Created once per distinct
// identity key; never updated or deleted by this pipeline.
type PublicationRecord struct {
	ID            string
	TargetID      string // canonical
	IdentityKey   string
	Headline      string
	PreviewText   string
	Body          string
	CategoryLabel string
	Priority      StoryPriority
	PublishedAt   time.Time
}

// RunSummary is written once per batch execution, even on failure.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	JobName     string    `json:"job_name"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Success     bool      `json:"success"`

	RecordsScanned   int `json:"records_scanned"`
	ClustersDetected int `json:"clusters_detected"`
	EventsDetected   int `json:"events_detected"`
	StoriesGenerated int `json:"stories_generated"`
	StoriesPublished int `json:"stories_published"`
	StoriesSkipped   int `json:"stories_skipped"`

	BudgetExhausted bool     `json:"budget_exhausted,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}
