package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edumatch/matching-service/internal/domain"
)

// ScoreRepo is the Postgres-backed score cache: at most one live row per
// (applicant, opportunity) pair, replaced wholesale on recomputation.
type ScoreRepo struct{ Pool PgxPool }

// NewScoreRepo constructs a ScoreRepo with the given pool.
func NewScoreRepo(p PgxPool) *ScoreRepo { return &ScoreRepo{Pool: p} }

// Upsert stores the score for the pair, replacing any prior row.
func (r *ScoreRepo) Upsert(ctx domain.Context, s domain.MatchScore) error {
	tracer := otel.Tracer("repo.scores")
	ctx, span := tracer.Start(ctx, "scores.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "matching_scores"),
	)

	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO matching_scores (id, applicant_id, opportunity_id, overall, breakdown, calculated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (applicant_id, opportunity_id) DO UPDATE SET
			overall = EXCLUDED.overall,
			breakdown = EXCLUDED.breakdown,
			calculated_at = EXCLUDED.calculated_at,
			expires_at = EXCLUDED.expires_at`
	_, err := r.Pool.Exec(ctx, q, id, s.ApplicantID, s.OpportunityID, s.Overall, s.Breakdown, s.CalculatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("op=score.upsert: %w", err)
	}
	return nil
}

// Get loads the cached score for the pair. Expiry is the caller's concern;
// a stored but stale row is still returned.
func (r *ScoreRepo) Get(ctx domain.Context, applicantID, opportunityID string) (domain.MatchScore, error) {
	tracer := otel.Tracer("repo.scores")
	ctx, span := tracer.Start(ctx, "scores.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "matching_scores"),
	)

	q := `SELECT id, applicant_id, opportunity_id, overall, breakdown, calculated_at, expires_at
		FROM matching_scores WHERE applicant_id=$1 AND opportunity_id=$2`
	var s domain.MatchScore
	err := r.Pool.QueryRow(ctx, q, applicantID, opportunityID).Scan(
		&s.ID, &s.ApplicantID, &s.OpportunityID, &s.Overall, &s.Breakdown, &s.CalculatedAt, &s.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MatchScore{}, fmt.Errorf("op=score.get: %w", domain.ErrNotFound)
		}
		return domain.MatchScore{}, fmt.Errorf("op=score.get: %w", err)
	}
	return s, nil
}

