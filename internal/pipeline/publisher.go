package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// PublishOutcome is the result of an idempotent publish attempt.
type PublishOutcome int

const (
	// PublishCreated means a new publication record was written.
	PublishCreated PublishOutcome = iota
	// PublishAlreadyExists means a record with the same identity key was
	// already present; nothing was written.
	PublishAlreadyExists
)

// Publisher writes story candidates through the publication store. The store's
// unique index on identity_key is the real exactly-once guarantee; the
// pre-insert lookup only saves narrative generation on the common repeat.
type Publisher struct {
	store  PublicationStore
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store PublicationStore, clock clockwork.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, clock: clock, logger: logger}
}

// AlreadyPublished reports whether an identity key has a publication on
// record. Used as a fast path before narrative generation.
func (p *Publisher) AlreadyPublished(ctx context.Context, identityKey string) (bool, error) {
	rec, err := p.store.FindByIdentityKey(ctx, identityKey)
	if err != nil {
		return false, fmt.Errorf("publication lookup: %w", err)
	}
	return rec != nil, nil
}

// Publish inserts a publication record for the candidate, keyed by its
// identity key. A concurrent run winning the insert race is reported as
// PublishAlreadyExists, not an error.
func (p *Publisher) Publish(ctx context.Context, candidate domain.StoryCandidate, canonicalTarget string) (PublishOutcome, error) {
	existing, err := p.store.FindByIdentityKey(ctx, candidate.IdentityKey)
	if err != nil {
		return 0, fmt.Errorf("publication lookup: %w", err)
	}
	if existing != nil {
		return PublishAlreadyExists, nil
	}

	rec := &domain.PublicationRecord{
		ID:            uuid.NewString(),
		TargetID:      canonicalTarget,
		IdentityKey:   candidate.IdentityKey,
		Headline:      candidate.Headline,
		PreviewText:   candidate.PreviewText,
		Body:          candidate.Body,
		CategoryLabel: candidate.CategoryLabel,
		Priority:      candidate.Priority,
		PublishedAt:   p.clock.Now().UTC(),
	}
	if err := p.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrPublicationExists) {
			p.logger.Debug("lost publish race", "identity_key", candidate.IdentityKey)
			return PublishAlreadyExists, nil
		}
		return 0, fmt.Errorf("publication insert: %w", err)
	}

	p.logger.Info("story published",
		"identity_key", candidate.IdentityKey,
		"target_id", canonicalTarget,
		"priority", candidate.Priority,
	)
	return PublishCreated, nil
}
