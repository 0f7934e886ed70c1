package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TargetRegistry answers existence checks against the platform's canonical
// target table (neighborhoods).
type TargetRegistry struct {
	db *sql.DB
}

// NewTargetRegistry constructs a Postgres-backed target registry.
func NewTargetRegistry(db *sql.DB) *TargetRegistry {
	return &TargetRegistry{db: db}
}

// Exists reports whether the canonical target id is registered.
func (r *TargetRegistry) Exists(ctx context.Context, canonicalID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM targets WHERE id = $1`, canonicalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("target existence check: %w", err)
	}
	return true, nil
}
