// Package postgres provides PostgreSQL adapters for the feature store and
// the score cache. All writes that touch feature rows run in a transaction
// so a feature mutation and the purge of its cached scores land together.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ApplicantRepo persists applicant feature rows using a minimal pgx pool.
type ApplicantRepo struct{ Pool PgxPool }

// NewApplicantRepo constructs an ApplicantRepo with the given pool.
func NewApplicantRepo(p PgxPool) *ApplicantRepo { return &ApplicantRepo{Pool: p} }

const applicantColumns = `id, applicant_id, gpa, major, university, year_of_study,
	skills, research_interests, skills_vector, research_vector, combined_text,
	created_at, updated_at, last_processed_at`

// Upsert writes the feature row last-write-wins on updated_at and, when the
// write applies, purges cached scores for the applicant in the same
// transaction. A stale write (older updated_at than the stored row) is a
// silent no-op and leaves the cache untouched.
func (r *ApplicantRepo) Upsert(ctx domain.Context, f domain.ApplicantFeature) error {
	tracer := otel.Tracer("repo.applicants")
	ctx, span := tracer.Start(ctx, "applicants.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "applicant_features"),
	)

	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=applicant.upsert begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO applicant_features (` + applicantColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (applicant_id) DO UPDATE SET
			gpa = EXCLUDED.gpa,
			major = EXCLUDED.major,
			university = EXCLUDED.university,
			year_of_study = EXCLUDED.year_of_study,
			skills = EXCLUDED.skills,
			research_interests = EXCLUDED.research_interests,
			skills_vector = EXCLUDED.skills_vector,
			research_vector = EXCLUDED.research_vector,
			combined_text = EXCLUDED.combined_text,
			updated_at = EXCLUDED.updated_at,
			last_processed_at = EXCLUDED.last_processed_at
		WHERE applicant_features.updated_at <= EXCLUDED.updated_at`
	tag, err := tx.Exec(ctx, q,
		id, f.ApplicantID, f.GPA, f.Major, f.University, f.YearOfStudy,
		f.Skills, f.ResearchInterests, f.SkillsVector, f.ResearchVector, f.CombinedText,
		f.CreatedAt, f.UpdatedAt, f.LastProcessedAt)
	if err != nil {
		return fmt.Errorf("op=applicant.upsert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM matching_scores WHERE applicant_id=$1`, f.ApplicantID); err != nil {
			return fmt.Errorf("op=applicant.upsert invalidate: %w", err)
		}
		observability.CacheInvalidationsTotal.WithLabelValues("applicant").Inc()
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=applicant.upsert commit: %w", err)
	}
	return nil
}

// Get loads an applicant feature row by applicant id.
func (r *ApplicantRepo) Get(ctx domain.Context, applicantID string) (domain.ApplicantFeature, error) {
	tracer := otel.Tracer("repo.applicants")
	ctx, span := tracer.Start(ctx, "applicants.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "applicant_features"),
	)

	q := `SELECT ` + applicantColumns + ` FROM applicant_features WHERE applicant_id=$1`
	f, err := scanApplicant(r.Pool.QueryRow(ctx, q, applicantID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ApplicantFeature{}, fmt.Errorf("op=applicant.get: %w", domain.ErrNotFound)
		}
		return domain.ApplicantFeature{}, fmt.Errorf("op=applicant.get: %w", err)
	}
	return f, nil
}

// List returns every applicant feature row, oldest first.
func (r *ApplicantRepo) List(ctx domain.Context) ([]domain.ApplicantFeature, error) {
	tracer := otel.Tracer("repo.applicants")
	ctx, span := tracer.Start(ctx, "applicants.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "applicant_features"),
	)

	q := `SELECT ` + applicantColumns + ` FROM applicant_features ORDER BY created_at`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=applicant.list: %w", err)
	}
	defer rows.Close()

	var out []domain.ApplicantFeature
	for rows.Next() {
		f, err := scanApplicant(rows)
		if err != nil {
			return nil, fmt.Errorf("op=applicant.list scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=applicant.list rows: %w", err)
	}
	return out, nil
}

func scanApplicant(row pgx.Row) (domain.ApplicantFeature, error) {
	var f domain.ApplicantFeature
	err := row.Scan(&f.ID, &f.ApplicantID, &f.GPA, &f.Major, &f.University, &f.YearOfStudy,
		&f.Skills, &f.ResearchInterests, &f.SkillsVector, &f.ResearchVector, &f.CombinedText,
		&f.CreatedAt, &f.UpdatedAt, &f.LastProcessedAt)
	return f, err
}
