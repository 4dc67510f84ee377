package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumatch/matching-service/internal/domain"
)

func profileEvent(userID string, gpa float64, skills ...string) domain.ProfileUpdatedEvent {
	return domain.ProfileUpdatedEvent{
		UserID: userID,
		GPA:    &gpa,
		Skills: skills,
	}
}

func createdEvent(id, title string, minGPA float64, required ...string) domain.OpportunityCreatedEvent {
	return domain.OpportunityCreatedEvent{OpportunityPayload: domain.OpportunityPayload{
		OpportunityID:   id,
		OpportunityType: domain.OpportunityTypeScholarship,
		Title:           title,
		MinGPA:          &minGPA,
		RequiredSkills:  required,
	}}
}

func TestHandle_ProfileUpdate_Idempotent(t *testing.T) {
	s := newMemStore()
	svc := newSync(s, &capturePublisher{}, &memDeduper{})
	ev := profileEvent("42", 3.5, "python", "ml")

	res := svc.Handle(context.Background(), ev)
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	first := s.applicants["42"]

	res = svc.Handle(context.Background(), ev)
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	second := s.applicants["42"]

	require.Len(t, s.applicants, 1)
	assert.Equal(t, first.Skills, second.Skills)
	assert.Equal(t, first.CombinedText, second.CombinedText)
	assert.Equal(t, *first.GPA, *second.GPA)
}

func TestHandle_ProfileUpdate_DerivesFeatures(t *testing.T) {
	s := newMemStore()
	svc := newSync(s, &capturePublisher{}, &memDeduper{})

	ev := profileEvent("42", 3.5, "Python", "ML")
	ev.Major = "Computer Science"
	ev.University = "HUST"
	ev.ResearchInterests = []string{"NLP"}

	res := svc.Handle(context.Background(), ev)
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	f := s.applicants["42"]
	assert.Equal(t, "python ml nlp computer science hust", f.CombinedText)
	assert.Equal(t, domain.Vector{1, 1}, f.SkillsVector)
	assert.Equal(t, domain.Vector{1}, f.ResearchVector)
}

func TestHandle_ProfileUpdate_InvalidatesCachedScores(t *testing.T) {
	s := newMemStore()
	svc := newSync(s, &capturePublisher{}, &memDeduper{})
	s.scores[pairKey("42", "s-9")] = domain.MatchScore{ApplicantID: "42", OpportunityID: "s-9"}
	s.scores[pairKey("7", "s-9")] = domain.MatchScore{ApplicantID: "7", OpportunityID: "s-9"}

	res := svc.Handle(context.Background(), profileEvent("42", 3.5, "python"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	_, mine := s.scores[pairKey("42", "s-9")]
	assert.False(t, mine, "mutation must purge cached scores for the applicant")
	_, other := s.scores[pairKey("7", "s-9")]
	assert.True(t, other, "other applicants' rows stay")
}

func TestHandle_ProfileUpdate_StaleTimestampIsNoOp(t *testing.T) {
	s := newMemStore()
	svc := newSync(s, &capturePublisher{}, &memDeduper{})

	fresh := profileEvent("42", 3.9, "go")
	now := time.Now().UTC()
	fresh.Timestamp = &now
	require.Equal(t, domain.OutcomeSuccess, svc.Handle(context.Background(), fresh).Outcome)

	stale := profileEvent("42", 2.0, "cobol")
	old := now.Add(-time.Hour)
	stale.Timestamp = &old
	require.Equal(t, domain.OutcomeSuccess, svc.Handle(context.Background(), stale).Outcome)

	f := s.applicants["42"]
	assert.Equal(t, []string{"go"}, f.Skills, "older event must not override newer state")
	assert.InDelta(t, 3.9, *f.GPA, 1e-9)
}

func TestHandle_OpportunityCreated_NoMatchesStillSucceeds(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{})

	// One applicant, far below the threshold for this opportunity.
	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 1.0)).Outcome)

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 4.0, "quantum", "haskell"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Empty(t, pub.alerts)
	assert.Equal(t, domain.StatusPublished, s.opportunities["s-9"].Status)
}

func TestHandle_OpportunityCreated_AlertsAboveThreshold(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 3.8, "python", "ml")).Outcome)

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)

	require.Len(t, pub.alerts, 1)
	a := pub.alerts[0]
	assert.Equal(t, int64(42), a.UserID)
	assert.Equal(t, "s-9", a.OpportunityID)
	assert.Equal(t, domain.AlertTypeNewMatch, a.Type)
	assert.GreaterOrEqual(t, a.Score, 70.0)
	assert.Contains(t, a.Body, "AI Scholarship")
}

func TestHandle_OpportunityCreated_RedeliveryDeduped(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 3.8, "python", "ml")).Outcome)

	ev := createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml")
	require.Equal(t, domain.OutcomeSuccess, svc.Handle(context.Background(), ev).Outcome)
	require.Equal(t, domain.OutcomeSuccess, svc.Handle(context.Background(), ev).Outcome)

	assert.Len(t, pub.alerts, 1, "redelivered event must not re-alert the same pair")
}

func TestHandle_OpportunityCreated_DedupeOutageDegradesToPublish(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{err: errStoreDown})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 3.8, "python", "ml")).Outcome)

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Len(t, pub.alerts, 1, "dedupe outage must not suppress alerts")
}

func TestHandle_OpportunityCreated_PublishFailureIsolatedPerRecipient(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{failFor: map[int64]error{7: errStoreDown}}
	svc := newSync(s, pub, &memDeduper{})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("7", 3.8, "python", "ml")).Outcome)
	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 3.8, "python", "ml")).Outcome)

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome, "one recipient failing must not fail the event")

	require.Len(t, pub.alerts, 1)
	assert.Equal(t, int64(42), pub.alerts[0].UserID)
}

func TestHandle_OpportunityCreated_NonNumericApplicantSkipped(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("abc-uuid", 3.8, "python", "ml")).Outcome)

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml"))
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Empty(t, pub.alerts)
}

func TestHandle_OpportunityUpdated_NoFanOut(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	svc := newSync(s, pub, &memDeduper{})

	require.Equal(t, domain.OutcomeSuccess,
		svc.Handle(context.Background(), profileEvent("42", 3.8, "python", "ml")).Outcome)

	ev := domain.OpportunityUpdatedEvent{OpportunityPayload: createdEvent("s-9", "AI Scholarship", 3.5, "python", "ml").OpportunityPayload}
	res := svc.Handle(context.Background(), ev)
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Empty(t, pub.alerts, "only created events fan out alerts")
	assert.Equal(t, "AI Scholarship", s.opportunities["s-9"].Title)
}

func TestHandle_OpportunityDeleted(t *testing.T) {
	s := newMemStore()
	svc := newSync(s, &capturePublisher{}, &memDeduper{})
	now := time.Now().UTC()
	s.opportunities["s-9"] = domain.OpportunityFeature{OpportunityID: "s-9", Status: domain.StatusPublished, UpdatedAt: now}
	s.scores[pairKey("42", "s-9")] = domain.MatchScore{ApplicantID: "42", OpportunityID: "s-9"}

	res := svc.Handle(context.Background(), domain.OpportunityDeletedEvent{OpportunityID: "s-9"})
	require.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, domain.StatusClosed, s.opportunities["s-9"].Status)
	assert.Empty(t, s.scores, "closing must purge cached scores")
}

func TestHandle_OpportunityDeleted_UnknownIDIsNoOp(t *testing.T) {
	svc := newSync(newMemStore(), &capturePublisher{}, &memDeduper{})
	res := svc.Handle(context.Background(), domain.OpportunityDeletedEvent{OpportunityID: "ghost"})
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
}

func TestHandle_StoreOutageExhaustsRetries(t *testing.T) {
	s := newMemStore()
	s.opportunityErr = errStoreDown
	svc := newSync(s, &capturePublisher{}, &memDeduper{})

	res := svc.Handle(context.Background(), createdEvent("s-9", "AI Scholarship", 3.5, "python"))
	assert.Equal(t, domain.OutcomeTerminal, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, res.Err, errStoreDown)
}
