// Package postgres persists publication records and serves the canonical
// target registry.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised by the identity-key
// uniqueness constraint. That constraint, not the application-level
// existence check, is the actual exactly-once guarantee.
const uniqueViolation = "23505"

// PublicationStore persists story publications.
type PublicationStore struct {
	db *sql.DB
}

// NewPublicationStore constructs a Postgres-backed publication store.
func NewPublicationStore(db *sql.DB) *PublicationStore {
	return &PublicationStore{db: db}
}

// Ping verifies connectivity to Postgres.
func (s *PublicationStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindByIdentityKey returns the publication under the given identity key, or
// nil when none exists.
func (s *PublicationStore) FindByIdentityKey(ctx context.Context, key string) (*domain.PublicationRecord, error) {
	q := `
		SELECT id, target_id, identity_key, headline, preview_text, body, category_label, priority, published_at
		FROM publications
		WHERE identity_key = $1
	`
	var rec domain.PublicationRecord
	var priority string
	err := s.db.QueryRowContext(ctx, q, key).Scan(
		&rec.ID, &rec.TargetID, &rec.IdentityKey,
		&rec.Headline, &rec.PreviewText, &rec.Body,
		&rec.CategoryLabel, &priority, &rec.PublishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find publication by identity key: %w", err)
	}
	rec.Priority = domain.StoryPriority(priority)
	return &rec, nil
}

// Insert persists a publication record. Returns domain.ErrPublicationExists
// when the identity key is already taken.
func (s *PublicationStore) Insert(ctx context.Context, rec *domain.PublicationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PublishedAt.IsZero() {
		rec.PublishedAt = time.Now().UTC()
	}

	q := `
		INSERT INTO publications (id, target_id, identity_key, headline, preview_text, body, category_label, priority, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.TargetID, rec.IdentityKey,
		rec.Headline, rec.PreviewText, rec.Body,
		rec.CategoryLabel, string(rec.Priority), rec.PublishedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrPublicationExists
		}
		return fmt.Errorf("insert publication: %w", err)
	}
	return nil
}
