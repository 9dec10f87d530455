package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
	"github.com/manual-hunter/backend/pkg/retry"
)

// minValidationScore is the bar a candidate must clear within its tier:
// reachable with a plausible content type. Quality is judged separately.
const minValidationScore = 4

type urlValidator interface {
	Validate(ctx context.Context, url string) models.ValidationResult
}

// TierResult is the outcome of running one tier: the first candidate that
// cleared the validation bar (if any) plus every candidate attempted along
// the way, for the escalation audit trail.
type TierResult struct {
	Found      bool
	Candidate  models.SearchCandidate
	Validation models.ValidationResult
	Attempted  []models.AttemptedCandidate
}

// Strategy runs the tiered fallback: providers ordered cheapest first, each
// tier's candidates validated in returned order, first pass wins. No
// re-ranking within a tier.
type Strategy struct {
	providers     []Provider
	validator     urlValidator
	tierTimeout   time.Duration
	maxCandidates int
}

func NewStrategy(providers []Provider, validator urlValidator, tierTimeout time.Duration, maxCandidates int) *Strategy {
	sorted := make([]Provider, len(providers))
	copy(sorted, providers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Tier() < sorted[j].Tier()
	})

	if tierTimeout <= 0 {
		tierTimeout = 20 * time.Second
	}
	if maxCandidates <= 0 {
		maxCandidates = 5
	}

	return &Strategy{
		providers:     sorted,
		validator:     validator,
		tierTimeout:   tierTimeout,
		maxCandidates: maxCandidates,
	}
}

// TierCount reports how many tiers are configured.
func (s *Strategy) TierCount() int {
	return len(s.providers)
}

// RunTier invokes the tier at index (0-based), retrying a transient provider
// error once, and validates its candidates in order. A returned error means
// the tier yielded nothing usable; the caller advances to the next tier.
func (s *Strategy) RunTier(ctx context.Context, equipment models.Equipment, index int) (TierResult, error) {
	if index < 0 || index >= len(s.providers) {
		return TierResult{}, fmt.Errorf("no search tier at index %d", index)
	}

	provider := s.providers[index]
	ctx, cancel := context.WithTimeout(ctx, s.tierTimeout)
	defer cancel()

	logger.Info("Running search tier",
		zap.Int("tier", provider.Tier()),
		zap.String("provider", provider.Name()),
		zap.String("equipment", describeEquipment(equipment)),
	)

	// Transient provider errors get exactly one retry per tier.
	candidates, err := retry.DoWithResult(ctx, retry.Config{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		Logger:       logger.GetLogger(),
	}, func() ([]models.SearchCandidate, error) {
		return provider.Search(ctx, equipment, s.maxCandidates)
	})
	if err != nil {
		return TierResult{}, fmt.Errorf("tier %d (%s) search failed: %w", provider.Tier(), provider.Name(), err)
	}

	result := TierResult{}
	for _, candidate := range candidates {
		validation := s.validator.Validate(ctx, candidate.URL)

		if validation.Reachable && validation.HeuristicScore >= minValidationScore {
			result.Found = true
			result.Candidate = candidate
			result.Validation = validation
			return result, nil
		}

		// Failed candidates are not retried; they go to the audit trail.
		result.Attempted = append(result.Attempted, models.AttemptedCandidate{
			Candidate:  candidate,
			Validation: validation,
		})
	}

	logger.Info("Search tier exhausted without a valid candidate",
		zap.Int("tier", provider.Tier()),
		zap.Int("attempted", len(result.Attempted)),
	)

	return result, nil
}
