package usecase_test

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/internal/usecase"
)

// memStore is a shared in-memory feature store honoring the repository
// contracts: last-write-wins on UpdatedAt and atomic purge of cached scores
// on every applied mutation.
type memStore struct {
	mu            sync.Mutex
	applicants    map[string]domain.ApplicantFeature
	opportunities map[string]domain.OpportunityFeature
	scores        map[string]domain.MatchScore

	applicantErr   error
	opportunityErr error
	scoreUpsertErr error
}

func newMemStore() *memStore {
	return &memStore{
		applicants:    map[string]domain.ApplicantFeature{},
		opportunities: map[string]domain.OpportunityFeature{},
		scores:        map[string]domain.MatchScore{},
	}
}

func pairKey(applicantID, opportunityID string) string { return applicantID + "|" + opportunityID }

type memApplicants struct{ s *memStore }

func (r memApplicants) Upsert(_ domain.Context, f domain.ApplicantFeature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.applicantErr != nil {
		return r.s.applicantErr
	}
	if prior, ok := r.s.applicants[f.ApplicantID]; ok && prior.UpdatedAt.After(f.UpdatedAt) {
		return nil
	}
	r.s.applicants[f.ApplicantID] = f
	for k, sc := range r.s.scores {
		if sc.ApplicantID == f.ApplicantID {
			delete(r.s.scores, k)
		}
	}
	return nil
}

func (r memApplicants) Get(_ domain.Context, id string) (domain.ApplicantFeature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.applicants[id]
	if !ok {
		return domain.ApplicantFeature{}, domain.ErrNotFound
	}
	return f, nil
}

func (r memApplicants) List(_ domain.Context) ([]domain.ApplicantFeature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.applicantErr != nil {
		return nil, r.s.applicantErr
	}
	out := make([]domain.ApplicantFeature, 0, len(r.s.applicants))
	for _, f := range r.s.applicants {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApplicantID < out[j].ApplicantID })
	return out, nil
}

type memOpportunities struct{ s *memStore }

func (r memOpportunities) Upsert(_ domain.Context, f domain.OpportunityFeature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.opportunityErr != nil {
		return r.s.opportunityErr
	}
	if prior, ok := r.s.opportunities[f.OpportunityID]; ok && prior.UpdatedAt.After(f.UpdatedAt) {
		return nil
	}
	r.s.opportunities[f.OpportunityID] = f
	for k, sc := range r.s.scores {
		if sc.OpportunityID == f.OpportunityID {
			delete(r.s.scores, k)
		}
	}
	return nil
}

func (r memOpportunities) Get(_ domain.Context, id string) (domain.OpportunityFeature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.opportunities[id]
	if !ok {
		return domain.OpportunityFeature{}, domain.ErrNotFound
	}
	return f, nil
}

func (r memOpportunities) List(_ domain.Context) ([]domain.OpportunityFeature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.OpportunityFeature, 0, len(r.s.opportunities))
	for _, f := range r.s.opportunities {
		if f.Status == domain.StatusPublished {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpportunityID < out[j].OpportunityID })
	return out, nil
}

func (r memOpportunities) Close(_ domain.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.opportunities[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.Status = domain.StatusClosed
	r.s.opportunities[id] = f
	for k, sc := range r.s.scores {
		if sc.OpportunityID == id {
			delete(r.s.scores, k)
		}
	}
	return nil
}

type memScores struct{ s *memStore }

func (r memScores) Upsert(_ domain.Context, sc domain.MatchScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.scoreUpsertErr != nil {
		return r.s.scoreUpsertErr
	}
	r.s.scores[pairKey(sc.ApplicantID, sc.OpportunityID)] = sc
	return nil
}

func (r memScores) Get(_ domain.Context, applicantID, opportunityID string) (domain.MatchScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.scores[pairKey(applicantID, opportunityID)]
	if !ok {
		return domain.MatchScore{}, domain.ErrNotFound
	}
	return sc, nil
}

// capturePublisher records alerts; an optional failFor set injects publish
// failures per applicant.
type capturePublisher struct {
	mu      sync.Mutex
	alerts  []domain.MatchAlert
	failFor map[int64]error
}

func (p *capturePublisher) PublishMatchAlert(_ domain.Context, a domain.MatchAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[a.UserID]; ok {
		return err
	}
	p.alerts = append(p.alerts, a)
	return nil
}

// memDeduper marks pairs in memory; err forces degradation paths.
type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDeduper) FirstAlert(_ domain.Context, applicantID, opportunityID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	key := pairKey(applicantID, opportunityID)
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

var errStoreDown = errors.New("store down")

func newMatcher(s *memStore) usecase.MatcherService {
	return usecase.NewMatcherService(
		memApplicants{s}, memOpportunities{s}, memScores{s},
		5*time.Minute, 10, 100, slog.Default())
}

func newSync(s *memStore, pub *capturePublisher, dd *memDeduper) usecase.SyncService {
	return usecase.SyncService{
		Applicants:    memApplicants{s},
		Opportunities: memOpportunities{s},
		Alerts:        pub,
		Dedupe:        dd,
		Retry:         domain.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
		Threshold:     70,
		Log:           slog.Default(),
	}
}
