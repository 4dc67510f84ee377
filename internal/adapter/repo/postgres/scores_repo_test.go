package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumatch/matching-service/internal/adapter/repo/postgres"
	"github.com/edumatch/matching-service/internal/domain"
)

func TestScoreRepo_Upsert(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewScoreRepo(pool)

	s := domain.MatchScore{
		ApplicantID:   "42",
		OpportunityID: "s-9",
		Overall:       67.63,
		Breakdown:     domain.ScoreBreakdown{GPAMatch: 81, SkillsMatch: 66.67, ResearchMatch: 50},
		CalculatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(context.Background(), s))
	require.Len(t, pool.executed, 1)
	assert.Contains(t, pool.executed[0], "INSERT INTO matching_scores")
	assert.Contains(t, pool.executed[0], "ON CONFLICT (applicant_id, opportunity_id)")
}

func TestScoreRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewScoreRepo(pool)

	_, err := repo.Get(context.Background(), "42", "s-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScoreRepo_Upsert_Error(t *testing.T) {
	t.Parallel()
	pool := &poolStub{results: map[string]execResult{
		"INSERT INTO matching_scores": {err: errors.New("down")},
	}}
	repo := postgres.NewScoreRepo(pool)

	err := repo.Upsert(context.Background(), domain.MatchScore{ApplicantID: "42", OpportunityID: "s-9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=score.upsert")
}
