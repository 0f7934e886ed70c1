package civicdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
)

// SampleSource serves deterministic synthetic records so jobs can be
// dry-run without touching the live ingestion source. Generation is seeded
// per dataset, so repeated sample runs see identical data and derive
// identical identity keys.
type SampleSource struct {
	now func() time.Time
}

// NewSampleSource creates a synthetic source anchored at the given time
// function (injected so fixtures are reproducible).
func NewSampleSource(now func() time.Time) *SampleSource {
	return &SampleSource{now: now}
}

// seedSite is one synthetic hotspot.
type seedSite struct {
	location string
	area     string
	category string
	count    int
}

var sampleSites = []seedSite{
	{"123 Main St", "greenpoint", "Noise - Commercial", 9},
	{"458 Bedford Ave", "williamsburg", "Illegal Parking", 6},
	{"77 Water St", "dumbo", "Noise - Commercial", 3}, // below default threshold on purpose
	{"902 Myrtle Ave", "ridgewood", "Blocked Driveway", 7},
}

// Fetch generates records for the requested window. The limit cap and since
// bound are honored the same way the real source honors them.
func (s *SampleSource) Fetch(ctx context.Context, dataset string, since time.Time, limit int) domain.FetchResult {
	if err := ctx.Err(); err != nil {
		return domain.FetchResult{SourceErr: err}
	}

	rng := rand.New(rand.NewSource(int64(len(dataset)) * 7919))
	now := s.now().UTC()
	span := now.Sub(since)
	if span <= 0 {
		return domain.FetchResult{}
	}

	var records []domain.SignalRecord
	for dayEnd := now; dayEnd.After(since); dayEnd = dayEnd.Add(-24 * time.Hour) {
		for _, site := range sampleSites {
			for i := 0; i < site.count; i++ {
				if len(records) >= limit {
					return domain.FetchResult{Records: records}
				}
				at := dayEnd.Add(-time.Duration(1+rng.Intn(23)) * time.Hour)
				if at.Before(since) || !at.Before(now) {
					continue
				}
				records = append(records, domain.SignalRecord{
					ID:         fmt.Sprintf("sample-%s-%s-%d-%d", dataset, site.area, dayEnd.Unix(), i),
					Category:   site.category,
					Location:   site.location,
					Area:       site.area,
					OccurredAt: at,
					Entity:     "Sample Entity LLC",
				})
			}
		}
	}
	return domain.FetchResult{Records: records}
}
