package match

import (
	"math"
	"sort"

	"github.com/edumatch/matching-service/internal/domain"
)

// neutralSimilarity is used when either side's vector is undefined. Missing
// data must not be penalized as total dissimilarity.
const neutralSimilarity = 0.5

// Candidate is the similarity-path input: precomputed vectors plus the
// combined-text fallback.
type Candidate struct {
	ID             string
	SkillsVector   domain.Vector
	ResearchVector domain.Vector
	CombinedText   string
}

// Ranked is one similarity result, score on the 0-100 scale.
type Ranked struct {
	ID    string `json:"id"`
	Score float64 `json:"score"`
}

// ComparableVector builds the vector used for cosine comparison: the
// L2-normalized concatenation of the precomputed skills and research vectors
// when both are present, else an on-the-fly frequency vector of the combined
// text, else nil (undefined).
func ComparableVector(c Candidate) domain.Vector {
	if len(c.SkillsVector) > 0 && len(c.ResearchVector) > 0 {
		combined := make(domain.Vector, 0, len(c.SkillsVector)+len(c.ResearchVector))
		combined = append(combined, c.SkillsVector...)
		combined = append(combined, c.ResearchVector...)
		return l2Normalize(combined)
	}
	if c.CombinedText != "" {
		return FrequencyVector(c.CombinedText, MaxVectorComponents)
	}
	return nil
}

// CosineSimilarity compares two vectors, zero-padding the shorter to the
// longer length. Either vector undefined yields the neutral 0.5. The result
// is clamped to [0,1].
func CosineSimilarity(a, b domain.Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return neutralSimilarity
	}
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0.0, math.Min(1.0, sim))
}

// RankBySimilarity scores every candidate against the target and returns the
// full list sorted by score descending. The sort is stable: equal scores
// keep their input order so repeated calls with identical input produce an
// identical ranking.
func RankBySimilarity(target Candidate, candidates []Candidate) []Ranked {
	targetVec := ComparableVector(target)

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		sim := CosineSimilarity(targetVec, ComparableVector(c))
		ranked[i] = Ranked{ID: c.ID, Score: round2(sim * 100)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func l2Normalize(v domain.Vector) domain.Vector {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make(domain.Vector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
