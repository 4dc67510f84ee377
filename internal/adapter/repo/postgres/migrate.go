package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS applicant_features (
		id UUID PRIMARY KEY,
		applicant_id TEXT NOT NULL UNIQUE,
		gpa DOUBLE PRECISION,
		major TEXT NOT NULL DEFAULT '',
		university TEXT NOT NULL DEFAULT '',
		year_of_study INT,
		skills TEXT[] NOT NULL DEFAULT '{}',
		research_interests TEXT[] NOT NULL DEFAULT '{}',
		skills_vector DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		research_vector DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		combined_text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_processed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS opportunity_features (
		id UUID PRIMARY KEY,
		opportunity_id TEXT NOT NULL UNIQUE,
		opportunity_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		min_gpa DOUBLE PRECISION,
		required_skills TEXT[] NOT NULL DEFAULT '{}',
		preferred_majors TEXT[] NOT NULL DEFAULT '{}',
		research_areas TEXT[] NOT NULL DEFAULT '{}',
		skills_vector DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		research_vector DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		combined_text TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_processed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS matching_scores (
		id UUID PRIMARY KEY,
		applicant_id TEXT NOT NULL,
		opportunity_id TEXT NOT NULL,
		overall DOUBLE PRECISION NOT NULL,
		breakdown JSONB NOT NULL,
		calculated_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS matching_scores_pair_idx
		ON matching_scores (applicant_id, opportunity_id)`,
	`CREATE INDEX IF NOT EXISTS matching_scores_opportunity_idx
		ON matching_scores (opportunity_id)`,
	`CREATE INDEX IF NOT EXISTS opportunity_features_status_idx
		ON opportunity_features (status)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent so the runner needs no version bookkeeping.
func Migrate(ctx context.Context, pool PgxPool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=postgres.migrate stmt=%d: %w", i, err)
		}
	}
	return nil
}
