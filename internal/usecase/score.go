// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/internal/match"
)

// MatcherService answers scoring queries: a single pair score through the
// cache, and the two ranking operations built on top of the similarity path.
type MatcherService struct {
	Applicants    domain.ApplicantRepository
	Opportunities domain.OpportunityRepository
	Scores        domain.ScoreCache
	CacheTTL      time.Duration
	DefaultLimit  int
	MaxLimit      int
	Log           *slog.Logger
}

// NewMatcherService constructs a MatcherService with its dependencies.
func NewMatcherService(a domain.ApplicantRepository, o domain.OpportunityRepository, s domain.ScoreCache, cacheTTL time.Duration, defaultLimit, maxLimit int, log *slog.Logger) MatcherService {
	return MatcherService{
		Applicants:    a,
		Opportunities: o,
		Scores:        s,
		CacheTTL:      cacheTTL,
		DefaultLimit:  defaultLimit,
		MaxLimit:      maxLimit,
		Log:           log,
	}
}

// RankedItem is one entry of a ranked page.
type RankedItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// RankedPage is a page of ranked results. Ranking is computed over the full
// candidate set before pagination so page boundaries are stable.
type RankedPage struct {
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
	Items      []RankedItem `json:"items"`
}

// Score returns the rule-based score for one pair, serving from the cache
// when an unexpired row exists. A pair with either feature record missing
// scores neutral and is not cached; the record may arrive moments later.
func (s MatcherService) Score(ctx domain.Context, applicantID, opportunityID string) (float64, domain.ScoreBreakdown, error) {
	if applicantID == "" || opportunityID == "" {
		return 0, domain.ScoreBreakdown{}, fmt.Errorf("%w: ids required", domain.ErrInvalidArgument)
	}

	if cached, err := s.Scores.Get(ctx, applicantID, opportunityID); err == nil {
		if !cached.Expired(time.Now().UTC()) {
			return cached.Overall, cached.Breakdown, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.Log.Warn("score cache read failed, recomputing",
			slog.String("applicant_id", applicantID),
			slog.String("opportunity_id", opportunityID),
			slog.Any("error", err))
	}

	applicant, aErr := s.Applicants.Get(ctx, applicantID)
	opportunity, oErr := s.Opportunities.Get(ctx, opportunityID)
	if errors.Is(aErr, domain.ErrNotFound) || errors.Is(oErr, domain.ErrNotFound) {
		overall, breakdown := match.NeutralBreakdown()
		return overall, breakdown, nil
	}
	if aErr != nil {
		return 0, domain.ScoreBreakdown{}, aErr
	}
	if oErr != nil {
		return 0, domain.ScoreBreakdown{}, oErr
	}

	started := time.Now()
	overall, breakdown := match.RuleScore(applicant, opportunity)
	observability.ScoreComputeDuration.Observe(time.Since(started).Seconds())

	now := time.Now().UTC()
	expires := now.Add(s.CacheTTL)
	cacheErr := s.Scores.Upsert(ctx, domain.MatchScore{
		ApplicantID:   applicantID,
		OpportunityID: opportunityID,
		Overall:       overall,
		Breakdown:     breakdown,
		CalculatedAt:  now,
		ExpiresAt:     &expires,
	})
	if cacheErr != nil {
		// The score itself is good; a failed write-through only costs a
		// recomputation next time.
		s.Log.Warn("score cache write failed",
			slog.String("applicant_id", applicantID),
			slog.String("opportunity_id", opportunityID),
			slog.Any("error", cacheErr))
	}
	return overall, breakdown, nil
}

// RecommendOpportunities ranks all published opportunities for the applicant
// by similarity and returns the requested page. An unknown applicant yields
// an empty page, not an error; the feature record may simply not have
// arrived yet.
func (s MatcherService) RecommendOpportunities(ctx domain.Context, applicantID string, page, limit int) (RankedPage, error) {
	applicant, err := s.Applicants.Get(ctx, applicantID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.paginate(nil, page, limit), nil
	}
	if err != nil {
		return RankedPage{}, err
	}
	opportunities, err := s.Opportunities.List(ctx)
	if err != nil {
		return RankedPage{}, err
	}

	target := match.Candidate{
		ID:             applicant.ApplicantID,
		SkillsVector:   applicant.SkillsVector,
		ResearchVector: applicant.ResearchVector,
		CombinedText:   applicant.CombinedText,
	}
	candidates := make([]match.Candidate, len(opportunities))
	for i, o := range opportunities {
		candidates[i] = match.Candidate{
			ID:             o.OpportunityID,
			SkillsVector:   o.SkillsVector,
			ResearchVector: o.ResearchVector,
			CombinedText:   o.CombinedText,
		}
	}
	return s.paginate(match.RankBySimilarity(target, candidates), page, limit), nil
}

// RankApplicants ranks applicants for the opportunity by similarity. With a
// non-empty candidateIDs the ranking is restricted to those applicants,
// otherwise every known applicant competes. An unknown opportunity yields an
// empty page, not an error.
func (s MatcherService) RankApplicants(ctx domain.Context, opportunityID string, candidateIDs []string, page, limit int) (RankedPage, error) {
	opportunity, err := s.Opportunities.Get(ctx, opportunityID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.paginate(nil, page, limit), nil
	}
	if err != nil {
		return RankedPage{}, err
	}
	applicants, err := s.Applicants.List(ctx)
	if err != nil {
		return RankedPage{}, err
	}
	if len(candidateIDs) > 0 {
		wanted := make(map[string]struct{}, len(candidateIDs))
		for _, id := range candidateIDs {
			wanted[id] = struct{}{}
		}
		filtered := applicants[:0]
		for _, a := range applicants {
			if _, ok := wanted[a.ApplicantID]; ok {
				filtered = append(filtered, a)
			}
		}
		applicants = filtered
	}

	target := match.Candidate{
		ID:             opportunity.OpportunityID,
		SkillsVector:   opportunity.SkillsVector,
		ResearchVector: opportunity.ResearchVector,
		CombinedText:   opportunity.CombinedText,
	}
	candidates := make([]match.Candidate, len(applicants))
	for i, a := range applicants {
		candidates[i] = match.Candidate{
			ID:             a.ApplicantID,
			SkillsVector:   a.SkillsVector,
			ResearchVector: a.ResearchVector,
			CombinedText:   a.CombinedText,
		}
	}
	return s.paginate(match.RankBySimilarity(target, candidates), page, limit), nil
}

func (s MatcherService) paginate(ranked []match.Ranked, page, limit int) RankedPage {
	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if limit > s.MaxLimit {
		limit = s.MaxLimit
	}
	if page < 1 {
		page = 1
	}

	total := len(ranked)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	items := make([]RankedItem, 0, end-start)
	for _, r := range ranked[start:end] {
		items = append(items, RankedItem{ID: r.ID, Score: r.Score})
	}
	return RankedPage{Total: total, Page: page, Limit: limit, TotalPages: totalPages, Items: items}
}
