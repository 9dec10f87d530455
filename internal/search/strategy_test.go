package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manual-hunter/backend/internal/storage/models"
)

type stubProvider struct {
	tier       int
	candidates []models.SearchCandidate
	errs       []error
	calls      int
}

func (p *stubProvider) Tier() int    { return p.tier }
func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(_ context.Context, _ models.Equipment, _ int) ([]models.SearchCandidate, error) {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return p.candidates, nil
}

type stubValidator struct {
	results map[string]models.ValidationResult
}

func (v *stubValidator) Validate(_ context.Context, url string) models.ValidationResult {
	if result, ok := v.results[url]; ok {
		return result
	}
	return models.ValidationResult{Reachable: false, Error: "unknown url"}
}

func reachablePDF() models.ValidationResult {
	return models.ValidationResult{Reachable: true, HTTPStatus: 200, ContentType: "application/pdf", HeuristicScore: 9}
}

func unreachable() models.ValidationResult {
	return models.ValidationResult{Reachable: false, HeuristicScore: 0, Error: "connection refused"}
}

func TestRunTierFirstValidCandidateWins(t *testing.T) {
	provider := &stubProvider{tier: 1, candidates: []models.SearchCandidate{
		{URL: "https://dead.example/a.pdf", Tier: 1},
		{URL: "https://live.example/b.pdf", Tier: 1},
		{URL: "https://also-live.example/c.pdf", Tier: 1},
	}}
	validator := &stubValidator{results: map[string]models.ValidationResult{
		"https://dead.example/a.pdf":      unreachable(),
		"https://live.example/b.pdf":      reachablePDF(),
		"https://also-live.example/c.pdf": reachablePDF(),
	}}

	strategy := NewStrategy([]Provider{provider}, validator, time.Second, 5)
	result, err := strategy.RunTier(context.Background(), models.Equipment{Manufacturer: "ABB", ModelNumber: "ACS580"}, 0)

	require.NoError(t, err)
	require.True(t, result.Found)
	// No re-ranking: the first candidate to validate wins, not the best.
	assert.Equal(t, "https://live.example/b.pdf", result.Candidate.URL)
	assert.Len(t, result.Attempted, 1)
	assert.Equal(t, "https://dead.example/a.pdf", result.Attempted[0].Candidate.URL)
}

func TestRunTierNoValidCandidates(t *testing.T) {
	provider := &stubProvider{tier: 1, candidates: []models.SearchCandidate{
		{URL: "https://dead.example/a.pdf", Tier: 1},
	}}
	validator := &stubValidator{results: map[string]models.ValidationResult{
		"https://dead.example/a.pdf": unreachable(),
	}}

	strategy := NewStrategy([]Provider{provider}, validator, time.Second, 5)
	result, err := strategy.RunTier(context.Background(), models.Equipment{Manufacturer: "ABB", ModelNumber: "ACS580"}, 0)

	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Len(t, result.Attempted, 1)
}

func TestRunTierRetriesTransientErrorOnce(t *testing.T) {
	provider := &stubProvider{
		tier: 1,
		errs: []error{errors.New("rate limited")},
		candidates: []models.SearchCandidate{
			{URL: "https://live.example/b.pdf", Tier: 1},
		},
	}
	validator := &stubValidator{results: map[string]models.ValidationResult{
		"https://live.example/b.pdf": reachablePDF(),
	}}

	strategy := NewStrategy([]Provider{provider}, validator, time.Second, 5)
	result, err := strategy.RunTier(context.Background(), models.Equipment{Manufacturer: "ABB", ModelNumber: "ACS580"}, 0)

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 2, provider.calls)
}

func TestRunTierPersistentErrorFailsTier(t *testing.T) {
	provider := &stubProvider{
		tier: 1,
		errs: []error{errors.New("down"), errors.New("still down")},
	}

	strategy := NewStrategy([]Provider{provider}, &stubValidator{}, time.Second, 5)
	_, err := strategy.RunTier(context.Background(), models.Equipment{Manufacturer: "ABB", ModelNumber: "ACS580"}, 0)

	require.Error(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestProvidersSortedByTier(t *testing.T) {
	tier3 := &stubProvider{tier: 3}
	tier1 := &stubProvider{tier: 1, candidates: []models.SearchCandidate{{URL: "https://live.example/b.pdf", Tier: 1}}}
	validator := &stubValidator{results: map[string]models.ValidationResult{
		"https://live.example/b.pdf": reachablePDF(),
	}}

	strategy := NewStrategy([]Provider{tier3, tier1}, validator, time.Second, 5)
	result, err := strategy.RunTier(context.Background(), models.Equipment{Manufacturer: "ABB", ModelNumber: "ACS580"}, 0)

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 1, result.Candidate.Tier)
	assert.Zero(t, tier3.calls)
}

func TestRunTierOutOfRange(t *testing.T) {
	strategy := NewStrategy(nil, &stubValidator{}, time.Second, 5)
	_, err := strategy.RunTier(context.Background(), models.Equipment{}, 0)
	require.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	query := buildQuery(models.Equipment{
		Manufacturer:  "ABB",
		ModelNumber:   "ACS580",
		ProductFamily: "drives",
	}, true)

	assert.Equal(t, "ABB ACS580 drives maintenance manual filetype:pdf", query)
}

func TestCleanResultLink(t *testing.T) {
	assert.Equal(t, "https://example.com/m.pdf",
		cleanResultLink("/url?q=https%3A%2F%2Fexample.com%2Fm.pdf&sa=U"))
	assert.Equal(t, "https://example.com/m.pdf", cleanResultLink("https://example.com/m.pdf"))
	assert.Empty(t, cleanResultLink("/search?q=deeper"))
	assert.Empty(t, cleanResultLink("javascript:void(0)"))
}
