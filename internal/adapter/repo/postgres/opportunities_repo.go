package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
)

// OpportunityRepo persists opportunity feature rows.
type OpportunityRepo struct{ Pool PgxPool }

// NewOpportunityRepo constructs an OpportunityRepo with the given pool.
func NewOpportunityRepo(p PgxPool) *OpportunityRepo { return &OpportunityRepo{Pool: p} }

const opportunityColumns = `id, opportunity_id, opportunity_type, title, description, min_gpa,
	required_skills, preferred_majors, research_areas, skills_vector, research_vector,
	combined_text, status, created_at, updated_at, last_processed_at`

// Upsert writes the feature row last-write-wins on updated_at and purges
// cached scores for the opportunity in the same transaction when the write
// applies.
func (r *OpportunityRepo) Upsert(ctx domain.Context, f domain.OpportunityFeature) error {
	tracer := otel.Tracer("repo.opportunities")
	ctx, span := tracer.Start(ctx, "opportunities.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "opportunity_features"),
	)

	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=opportunity.upsert begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO opportunity_features (` + opportunityColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (opportunity_id) DO UPDATE SET
			opportunity_type = EXCLUDED.opportunity_type,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			min_gpa = EXCLUDED.min_gpa,
			required_skills = EXCLUDED.required_skills,
			preferred_majors = EXCLUDED.preferred_majors,
			research_areas = EXCLUDED.research_areas,
			skills_vector = EXCLUDED.skills_vector,
			research_vector = EXCLUDED.research_vector,
			combined_text = EXCLUDED.combined_text,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			last_processed_at = EXCLUDED.last_processed_at
		WHERE opportunity_features.updated_at <= EXCLUDED.updated_at`
	tag, err := tx.Exec(ctx, q,
		id, f.OpportunityID, f.OpportunityType, f.Title, f.Description, f.MinGPA,
		f.RequiredSkills, f.PreferredMajors, f.ResearchAreas, f.SkillsVector, f.ResearchVector,
		f.CombinedText, f.Status, f.CreatedAt, f.UpdatedAt, f.LastProcessedAt)
	if err != nil {
		return fmt.Errorf("op=opportunity.upsert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM matching_scores WHERE opportunity_id=$1`, f.OpportunityID); err != nil {
			return fmt.Errorf("op=opportunity.upsert invalidate: %w", err)
		}
		observability.CacheInvalidationsTotal.WithLabelValues("opportunity").Inc()
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=opportunity.upsert commit: %w", err)
	}
	return nil
}

// Get loads an opportunity feature row by opportunity id.
func (r *OpportunityRepo) Get(ctx domain.Context, opportunityID string) (domain.OpportunityFeature, error) {
	tracer := otel.Tracer("repo.opportunities")
	ctx, span := tracer.Start(ctx, "opportunities.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "opportunity_features"),
	)

	q := `SELECT ` + opportunityColumns + ` FROM opportunity_features WHERE opportunity_id=$1`
	f, err := scanOpportunity(r.Pool.QueryRow(ctx, q, opportunityID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OpportunityFeature{}, fmt.Errorf("op=opportunity.get: %w", domain.ErrNotFound)
		}
		return domain.OpportunityFeature{}, fmt.Errorf("op=opportunity.get: %w", err)
	}
	return f, nil
}

// List returns every published opportunity feature row, oldest first. Closed
// opportunities stay in the table but are excluded from candidate sets.
func (r *OpportunityRepo) List(ctx domain.Context) ([]domain.OpportunityFeature, error) {
	tracer := otel.Tracer("repo.opportunities")
	ctx, span := tracer.Start(ctx, "opportunities.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "opportunity_features"),
	)

	q := `SELECT ` + opportunityColumns + ` FROM opportunity_features WHERE status=$1 ORDER BY created_at`
	rows, err := r.Pool.Query(ctx, q, domain.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("op=opportunity.list: %w", err)
	}
	defer rows.Close()

	var out []domain.OpportunityFeature
	for rows.Next() {
		f, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("op=opportunity.list scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=opportunity.list rows: %w", err)
	}
	return out, nil
}

// Close marks the opportunity closed and purges its cached scores in one
// transaction. The feature row itself is retained.
func (r *OpportunityRepo) Close(ctx domain.Context, opportunityID string) error {
	tracer := otel.Tracer("repo.opportunities")
	ctx, span := tracer.Start(ctx, "opportunities.Close")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "opportunity_features"),
	)

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=opportunity.close begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `UPDATE opportunity_features SET status=$1, last_processed_at=now() WHERE opportunity_id=$2`
	tag, err := tx.Exec(ctx, q, domain.StatusClosed, opportunityID)
	if err != nil {
		return fmt.Errorf("op=opportunity.close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=opportunity.close: %w", domain.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM matching_scores WHERE opportunity_id=$1`, opportunityID); err != nil {
		return fmt.Errorf("op=opportunity.close invalidate: %w", err)
	}
	observability.CacheInvalidationsTotal.WithLabelValues("opportunity").Inc()
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=opportunity.close commit: %w", err)
	}
	return nil
}

func scanOpportunity(row pgx.Row) (domain.OpportunityFeature, error) {
	var f domain.OpportunityFeature
	err := row.Scan(&f.ID, &f.OpportunityID, &f.OpportunityType, &f.Title, &f.Description, &f.MinGPA,
		&f.RequiredSkills, &f.PreferredMajors, &f.ResearchAreas, &f.SkillsVector, &f.ResearchVector,
		&f.CombinedText, &f.Status, &f.CreatedAt, &f.UpdatedAt, &f.LastProcessedAt)
	return f, err
}
