// Package domain defines the core entities, ports, and error taxonomy of the
// matching service.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrUnavailable     = errors.New("unavailable")
	ErrInternal        = errors.New("internal error")
)

// OpportunityType enumerates supported opportunity kinds.
const (
	OpportunityTypeScholarship = "scholarship"
	OpportunityTypeLab         = "lab"
)

// OpportunityStatus values. External sync publishes opportunities; a deleted
// or closed opportunity transitions to StatusClosed and is never hard-deleted
// by this core.
const (
	StatusPublished = "published"
	StatusClosed    = "closed"
)

// Vector is a derived numeric feature representation (bag-of-words
// frequencies, capped dimensionality).
type Vector []float64

// ApplicantFeature is the materialized, comparable representation of an
// applicant profile. The derived fields (CombinedText, SkillsVector,
// ResearchVector) are always recomputed together and replace the prior
// derived state atomically.
type ApplicantFeature struct {
	ID                string
	ApplicantID       string
	GPA               *float64
	Major             string
	University        string
	YearOfStudy       *int
	Skills            []string
	ResearchInterests []string
	SkillsVector      Vector
	ResearchVector    Vector
	CombinedText      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastProcessedAt   time.Time
}

// OpportunityFeature is the materialized representation of a scholarship or
// lab position. Same atomic derived-field invariant as ApplicantFeature.
type OpportunityFeature struct {
	ID              string
	OpportunityID   string
	OpportunityType string
	Title           string
	Description     string
	MinGPA          *float64
	RequiredSkills  []string
	PreferredMajors []string
	ResearchAreas   []string
	SkillsVector    Vector
	ResearchVector  Vector
	CombinedText    string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastProcessedAt time.Time
}

// ScoreBreakdown is the per-component result of the rule-based path.
type ScoreBreakdown struct {
	GPAMatch      float64 `json:"gpaMatch"`
	SkillsMatch   float64 `json:"skillsMatch"`
	ResearchMatch float64 `json:"researchMatch"`
}

// MatchScore is a cached rule-based score for one (applicant, opportunity)
// pair. A row is authoritative until either side's feature row changes;
// ExpiresAt is a secondary, best-effort bound.
type MatchScore struct {
	ID            string
	ApplicantID   string
	OpportunityID string
	Overall       float64
	Breakdown     ScoreBreakdown
	CalculatedAt  time.Time
	ExpiresAt     *time.Time
}

// Expired reports whether the cached row's TTL bound has passed.
func (s MatchScore) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// MatchAlert is the notification emitted when a new opportunity scores above
// the alert threshold for an applicant.
type MatchAlert struct {
	UserID        int64   `json:"userId"`
	OpportunityID string  `json:"opportunityId"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	Type          string  `json:"type"`
	Score         float64 `json:"-"`
}

// AlertTypeNewMatch is the notification type consumed downstream.
const AlertTypeNewMatch = "NEW_MATCH"

// Repositories (ports)

// ApplicantRepository owns applicant feature rows. Upsert must atomically
// purge cached scores referencing the applicant in the same unit of work, and
// resolves same-id conflicts last-write-wins on UpdatedAt.
type ApplicantRepository interface {
	Upsert(ctx Context, f ApplicantFeature) error
	Get(ctx Context, applicantID string) (ApplicantFeature, error)
	List(ctx Context) ([]ApplicantFeature, error)
}

// OpportunityRepository owns opportunity feature rows, with the same atomic
// invalidation and LWW contract as ApplicantRepository. Close marks the
// opportunity terminal and purges its cached scores; it never deletes the row.
type OpportunityRepository interface {
	Upsert(ctx Context, f OpportunityFeature) error
	Get(ctx Context, opportunityID string) (OpportunityFeature, error)
	List(ctx Context) ([]OpportunityFeature, error)
	Close(ctx Context, opportunityID string) error
}

// ScoreCache holds derived rule-based scores, at most one live row per pair.
// Invalidation is not part of the port: cached scores are purged inside the
// feature-row write transactions, never as a separate call.
type ScoreCache interface {
	Upsert(ctx Context, s MatchScore) error
	Get(ctx Context, applicantID, opportunityID string) (MatchScore, error)
}

// AlertPublisher (port)

type AlertPublisher interface {
	PublishMatchAlert(ctx Context, a MatchAlert) error
}

// AlertDeduper (port)
// FirstAlert reports whether the pair has not been alerted within the dedupe
// window, atomically marking it. At-least-once delivery means the same
// opportunity-created event may be processed twice; the deduper keeps the
// fan-out from re-alerting.
type AlertDeduper interface {
	FirstAlert(ctx Context, applicantID, opportunityID string) (bool, error)
}

// Context is an alias so ports read uniformly; adapters pass context.Context
// straight through.
type Context = context.Context
