package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/internal/match"
	"github.com/edumatch/matching-service/pkg/textx"
)

// SyncService applies broker events to the feature store and fans out match
// alerts for newly created opportunities. It is the single EventHandler
// behind the dispatcher; each event is applied under the retry policy.
type SyncService struct {
	Applicants    domain.ApplicantRepository
	Opportunities domain.OpportunityRepository
	Alerts        domain.AlertPublisher
	Dedupe        domain.AlertDeduper
	Retry         domain.RetryPolicy
	Threshold     float64
	Log           *slog.Logger
}

// Handle applies one event under the retry policy and reports the outcome.
func (s SyncService) Handle(ctx domain.Context, ev domain.Event) domain.RetryResult {
	return s.Retry.Execute(ctx, func(ctx domain.Context) error {
		return s.apply(ctx, ev)
	})
}

func (s SyncService) apply(ctx domain.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.ProfileUpdatedEvent:
		return s.applyProfileUpdate(ctx, e)
	case domain.OpportunityCreatedEvent:
		return s.applyOpportunityUpsert(ctx, e.OpportunityPayload, true)
	case domain.OpportunityUpdatedEvent:
		return s.applyOpportunityUpsert(ctx, e.OpportunityPayload, false)
	case domain.OpportunityDeletedEvent:
		return s.applyOpportunityDeleted(ctx, e)
	default:
		return fmt.Errorf("op=sync.apply: %w: no handler for %s", domain.ErrInvalidArgument, ev.RoutingKey())
	}
}

func (s SyncService) applyProfileUpdate(ctx domain.Context, ev domain.ProfileUpdatedEvent) error {
	now := time.Now().UTC()
	features := match.Featurize(ev.Skills, ev.ResearchInterests, textx.JoinNonEmpty(ev.Major, ev.University))

	updatedAt := now
	if ev.Timestamp != nil {
		updatedAt = ev.Timestamp.UTC()
	}

	err := s.Applicants.Upsert(ctx, domain.ApplicantFeature{
		ApplicantID:       ev.UserID,
		GPA:               ev.GPA,
		Major:             ev.Major,
		University:        ev.University,
		YearOfStudy:       ev.YearOfStudy,
		Skills:            ev.Skills,
		ResearchInterests: ev.ResearchInterests,
		SkillsVector:      features.SkillsVector,
		ResearchVector:    features.ResearchVector,
		CombinedText:      features.CombinedText,
		CreatedAt:         now,
		UpdatedAt:         updatedAt,
		LastProcessedAt:   now,
	})
	if err != nil {
		return err
	}
	s.Log.Info("applicant features synced", slog.String("applicant_id", ev.UserID))
	return nil
}

func (s SyncService) applyOpportunityUpsert(ctx domain.Context, p domain.OpportunityPayload, created bool) error {
	now := time.Now().UTC()
	id := p.ResolveID()
	title := textx.SanitizeText(p.Title)
	description := textx.SanitizeText(p.Description)
	features := match.Featurize(p.RequiredSkills, p.ResearchAreas, textx.JoinNonEmpty(title, description))

	updatedAt := now
	if p.Timestamp != nil {
		updatedAt = p.Timestamp.UTC()
	}

	err := s.Opportunities.Upsert(ctx, domain.OpportunityFeature{
		OpportunityID:   id,
		OpportunityType: p.OpportunityType,
		Title:           title,
		Description:     description,
		MinGPA:          p.MinGPA,
		RequiredSkills:  p.RequiredSkills,
		PreferredMajors: p.PreferredMajors,
		ResearchAreas:   p.ResearchAreas,
		SkillsVector:    features.SkillsVector,
		ResearchVector:  features.ResearchVector,
		CombinedText:    features.CombinedText,
		Status:          domain.StatusPublished,
		CreatedAt:       now,
		UpdatedAt:       updatedAt,
		LastProcessedAt: now,
	})
	if err != nil {
		return err
	}
	s.Log.Info("opportunity features synced",
		slog.String("opportunity_id", id),
		slog.Bool("created", created))

	if created {
		s.notifyMatches(ctx, id, title)
	}
	return nil
}

func (s SyncService) applyOpportunityDeleted(ctx domain.Context, ev domain.OpportunityDeletedEvent) error {
	id := ev.ResolveID()
	err := s.Opportunities.Close(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Already gone or never synced; deletion is idempotent.
		s.Log.Info("opportunity delete for unknown id", slog.String("opportunity_id", id))
		return nil
	}
	if err != nil {
		return err
	}
	s.Log.Info("opportunity closed", slog.String("opportunity_id", id))
	return nil
}

// notifyMatches ranks the full applicant population against a freshly
// created opportunity on the similarity path and alerts everyone above the
// threshold. The fan-out is best-effort: a failure for one recipient never
// blocks the rest, and never fails the event.
func (s SyncService) notifyMatches(ctx domain.Context, opportunityID, title string) {
	opportunity, err := s.Opportunities.Get(ctx, opportunityID)
	if err != nil {
		s.Log.Error("match fan-out skipped, cannot load opportunity",
			slog.String("opportunity_id", opportunityID),
			slog.Any("error", err))
		return
	}
	applicants, err := s.Applicants.List(ctx)
	if err != nil {
		s.Log.Error("match fan-out skipped, cannot list applicants",
			slog.String("opportunity_id", opportunityID),
			slog.Any("error", err))
		return
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

	for _, r := range match.RankBySimilarity(target, candidates) {
		if r.Score < s.Threshold {
			// Sorted descending; nothing below the threshold alerts.
			break
		}

		first, err := s.Dedupe.FirstAlert(ctx, r.ID, opportunityID)
		if err != nil {
			// Better a duplicate alert than a missed one.
			s.Log.Warn("alert dedupe unavailable, publishing anyway",
				slog.String("applicant_id", r.ID),
				slog.Any("error", err))
		} else if !first {
			observability.AlertsDedupedTotal.Inc()
			continue
		}

		userID, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			s.Log.Warn("skipping alert, applicant id is not numeric",
				slog.String("applicant_id", r.ID))
			continue
		}

		alert := domain.MatchAlert{
			UserID:        userID,
			OpportunityID: opportunityID,
			Title:         "Học bổng mới phù hợp với bạn!",
			Body:          fmt.Sprintf("%s phù hợp %.0f%% với hồ sơ của bạn.", title, r.Score),
			Type:          domain.AlertTypeNewMatch,
			Score:         r.Score,
		}
		if err := s.Alerts.PublishMatchAlert(ctx, alert); err != nil {
			s.Log.Error("match alert publish failed",
				slog.String("applicant_id", r.ID),
				slog.String("opportunity_id", opportunityID),
				slog.Any("error", err))
		}
	}
}
