package match

import (
	"math"

	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/pkg/textx"
)

// Component weights of the rule-based score.
const (
	gpaWeight      = 0.3
	skillsWeight   = 0.5
	researchWeight = 0.2
)

// NeutralScore is returned for every component when a feature record is
// missing. Absence of a profile is a legitimate state, not an error.
const NeutralScore = 50.0

// RuleScore computes the weighted rule-based compatibility score for one
// materialized pair. Overall and each component are in [0,100], rounded to
// two decimals.
func RuleScore(a domain.ApplicantFeature, o domain.OpportunityFeature) (float64, domain.ScoreBreakdown) {
	gpa := GPAScore(a.GPA, o.MinGPA)
	skills := overlapRaw(a.Skills, o.RequiredSkills)
	research := researchRaw(a.ResearchInterests, o.ResearchAreas)

	// The overall is weighted over the unrounded components; only the
	// reported values are rounded.
	overall := round2(gpa*gpaWeight + skills*skillsWeight + research*researchWeight)
	breakdown := domain.ScoreBreakdown{
		GPAMatch:      round2(gpa),
		SkillsMatch:   round2(skills),
		ResearchMatch: round2(research),
	}
	return overall, breakdown
}

// NeutralBreakdown is the defined result when either feature record is
// missing: neutral on every component.
func NeutralBreakdown() (float64, domain.ScoreBreakdown) {
	return NeutralScore, domain.ScoreBreakdown{
		GPAMatch:      NeutralScore,
		SkillsMatch:   NeutralScore,
		ResearchMatch: NeutralScore,
	}
}

// GPAScore scores the applicant's GPA against the opportunity minimum.
// No applicant GPA: neutral 50. No minimum: 75 (good, unconstrained).
// Meeting the minimum earns 75 plus a capped bonus; missing it loses 30
// points per grade point below, floored at 0.
func GPAScore(applicantGPA, minGPA *float64) float64 {
	if applicantGPA == nil {
		return NeutralScore
	}
	if minGPA == nil {
		return 75.0
	}
	if *applicantGPA >= *minGPA {
		bonus := math.Min((*applicantGPA-*minGPA)*20, 25)
		return math.Min(75.0+bonus, 100.0)
	}
	penalty := (*minGPA - *applicantGPA) * 30
	return math.Max(0, 50-penalty)
}

// OverlapScore scores how well the applicant's terms cover the required
// terms: 60% coverage of the requirement plus 40% Jaccard similarity, over
// case-insensitive trimmed sets. No requirements: 75. No applicant terms: 0.
func OverlapScore(have, want []string) float64 {
	return round2(overlapRaw(have, want))
}

func overlapRaw(have, want []string) float64 {
	wantSet := textx.NormalizeSet(want)
	if len(wantSet) == 0 {
		return 75.0
	}
	haveSet := textx.NormalizeSet(have)
	if len(haveSet) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range haveSet {
		if _, ok := wantSet[term]; ok {
			intersection++
		}
	}
	union := len(haveSet) + len(wantSet) - intersection
	if union == 0 {
		return 0.0
	}

	jaccard := float64(intersection) / float64(union)
	coverage := float64(intersection) / float64(len(wantSet))
	return (coverage*0.6 + jaccard*0.4) * 100
}

// ResearchScore applies the overlap formula to research interests vs
// research areas, except an opportunity with no research-area data scores a
// neutral 50 rather than 75. The asymmetry with OverlapScore is deliberate
// and load-bearing: research data is treated as "not applicable" when
// absent, not "unconstrained".
func ResearchScore(interests, areas []string) float64 {
	return round2(researchRaw(interests, areas))
}

func researchRaw(interests, areas []string) float64 {
	if len(textx.NormalizeSet(areas)) == 0 {
		return NeutralScore
	}
	return overlapRaw(interests, areas)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
