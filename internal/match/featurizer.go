// Package match holds the pure scoring and featurization algorithms: the
// text featurizer, the rule-based pair scorer, and the similarity ranker.
// Everything here is deterministic and free of I/O.
package match

import (
	"strings"

	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/pkg/textx"
)

// MaxVectorComponents caps the dimensionality of derived frequency vectors.
const MaxVectorComponents = 100

// Features is the derived comparable representation of an entity's text
// attributes. The three fields are always produced together.
type Features struct {
	CombinedText   string
	SkillsVector   domain.Vector
	ResearchVector domain.Vector
}

// Featurize builds the combined text and the two bag-of-words vectors from
// skill terms, research-interest terms, and auxiliary free text. Same input
// always yields the same output; empty input yields empty text and nil
// vectors, never an error.
func Featurize(skills, interests []string, auxiliaryText string) Features {
	skillsText := strings.Join(skills, " ")
	interestsText := strings.Join(interests, " ")
	combined := strings.ToLower(textx.JoinNonEmpty(skillsText, interestsText, auxiliaryText))

	return Features{
		CombinedText:   combined,
		SkillsVector:   FrequencyVector(skillsText, MaxVectorComponents),
		ResearchVector: FrequencyVector(interestsText, MaxVectorComponents),
	}
}

// FrequencyVector produces token frequencies in first-appearance order,
// truncated to at most limit components. Empty text yields nil.
func FrequencyVector(text string, limit int) domain.Vector {
	tokens := textx.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}
	if len(order) > limit {
		order = order[:limit]
	}
	vec := make(domain.Vector, len(order))
	for i, tok := range order {
		vec[i] = float64(counts[tok])
	}
	return vec
}
