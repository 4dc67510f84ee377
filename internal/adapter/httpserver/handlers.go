package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Matcher usecase.MatcherService
}

// NewServer constructs a Server over the matcher service.
func NewServer(m usecase.MatcherService) *Server { return &Server{Matcher: m} }

type scoreResponse struct {
	OverallScore float64               `json:"overallScore"`
	Breakdown    domain.ScoreBreakdown `json:"breakdown"`
}

// ScoreHandler serves GET /v1/match-score?applicantId=&opportunityId=.
// A missing applicant or opportunity yields neutral scores, not a 404.
func (s *Server) ScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicantID := r.URL.Query().Get("applicantId")
		opportunityID := r.URL.Query().Get("opportunityId")

		overall, breakdown, err := s.Matcher.Score(r.Context(), applicantID, opportunityID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, scoreResponse{OverallScore: overall, Breakdown: breakdown})
	}
}

// RecommendHandler serves GET /v1/recommendations/{applicantId}.
func (s *Server) RecommendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicantID := chi.URLParam(r, "applicantId")
		page, limit := pageParams(r)

		result, err := s.Matcher.RecommendOpportunities(r.Context(), applicantID, page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// RankHandler serves GET /v1/opportunities/{opportunityId}/candidates with
// an optional comma-separated ids filter.
func (s *Server) RankHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opportunityID := chi.URLParam(r, "opportunityId")
		page, limit := pageParams(r)

		var candidateIDs []string
		if raw := r.URL.Query().Get("ids"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					candidateIDs = append(candidateIDs, id)
				}
			}
		}

		result, err := s.Matcher.RankApplicants(r.Context(), opportunityID, candidateIDs, page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// pageParams reads page and limit, leaving clamping to the usecase layer.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
