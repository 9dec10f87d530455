package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/cache/redis"
	"github.com/manual-hunter/backend/internal/judge"
	"github.com/manual-hunter/backend/internal/metrics"
	"github.com/manual-hunter/backend/internal/search"
	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/internal/storage/sqlite"
	"github.com/manual-hunter/backend/pkg/logger"
)

type Status string

const (
	StatusResolved    Status = "resolved"
	StatusNeedsReview Status = "needs_review"
	StatusError       Status = "error"
)

// Result is the terminal outcome of one resolution attempt. needs_review is
// an expected outcome, not a failure.
type Result struct {
	Status             Status
	Record             *models.CacheRecord
	BestConfidenceSeen int
	Reason             string
	CacheWarning       string
	FromCache          bool
}

// ProgressFunc observes state transitions, used by the streaming API.
type ProgressFunc func(phase string, tier int)

type CacheStore interface {
	Lookup(ctx context.Context, key models.EquipmentKey) (*models.CacheRecord, error)
	Upsert(ctx context.Context, record *models.CacheRecord) error
}

type SearchStrategy interface {
	TierCount() int
	RunTier(ctx context.Context, equipment models.Equipment, index int) (search.TierResult, error)
}

type QualityJudge interface {
	Judge(ctx context.Context, equipment models.Equipment, candidate models.SearchCandidate, validation models.ValidationResult, excerpt string) judge.Score
}

type ExcerptFetcher interface {
	FetchExcerpt(ctx context.Context, url, contentType string) string
}

type ReviewSink interface {
	Enqueue(ctx context.Context, entry *models.ReviewQueueEntry) error
}

// KeyLocker is the cross-process per-key claim. Nil is allowed; the resolver
// then falls back to in-process key mutexes.
type KeyLocker interface {
	Claim(ctx context.Context, key models.EquipmentKey, ownerID string, ttl time.Duration) error
	Release(ctx context.Context, key models.EquipmentKey, ownerID string)
	PublishResult(ctx context.Context, key models.EquipmentKey, record *models.CacheRecord, ttl time.Duration) error
	WaitForResult(ctx context.Context, key models.EquipmentKey, wait time.Duration) (*models.CacheRecord, error)
}

// Config carries the orchestrator knobs. Zero values fall back to the
// recommended defaults.
type Config struct {
	AcceptanceThreshold int
	ValidationWeight    float64
	JudgeWeight         float64
	Budget              time.Duration
	ClaimTTL            time.Duration
	ClaimWait           time.Duration
}

func (c Config) withDefaults() Config {
	if c.AcceptanceThreshold == 0 {
		c.AcceptanceThreshold = 60
	}
	if c.ValidationWeight == 0 && c.JudgeWeight == 0 {
		c.ValidationWeight = 0.4
		c.JudgeWeight = 0.6
	}
	if c.Budget <= 0 {
		c.Budget = 90 * time.Second
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 90 * time.Second
	}
	if c.ClaimWait <= 0 {
		c.ClaimWait = 30 * time.Second
	}
	return c
}

type Resolver struct {
	cfg      Config
	cache    CacheStore
	strategy SearchStrategy
	judge    QualityJudge
	fetcher  ExcerptFetcher
	reviews  ReviewSink
	locker   KeyLocker

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

func New(cfg Config, cache CacheStore, strategy SearchStrategy, qualityJudge QualityJudge, fetcher ExcerptFetcher, reviews ReviewSink, locker KeyLocker) *Resolver {
	return &Resolver{
		cfg:      cfg.withDefaults(),
		cache:    cache,
		strategy: strategy,
		judge:    qualityJudge,
		fetcher:  fetcher,
		reviews:  reviews,
		locker:   locker,
		keys:     make(map[string]*sync.Mutex),
	}
}

func (r *Resolver) Resolve(ctx context.Context, equipment models.Equipment) *Result {
	return r.ResolveWithProgress(ctx, equipment, nil)
}

func (r *Resolver) ResolveWithProgress(ctx context.Context, equipment models.Equipment, progress ProgressFunc) *Result {
	start := time.Now()
	result := r.resolve(ctx, equipment, progress)

	metrics.ResolutionTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.ResolutionDuration.WithLabelValues(string(result.Status)).Observe(time.Since(start).Seconds())

	return result
}

func (r *Resolver) resolve(ctx context.Context, equipment models.Equipment, progress ProgressFunc) *Result {
	key := equipment.Key()
	if key.Manufacturer == "" || key.ModelNumber == "" {
		return &Result{Status: StatusError, Reason: "manufacturer and model_number are required"}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Budget)
	defer cancel()

	// Dominant fast path: a cache hit never touches the claim or the tiers.
	if record, err := r.cache.Lookup(ctx, key); err == nil {
		metrics.CacheHits.Inc()
		notify(progress, phaseDone.String(), record.SearchTier)
		return &Result{Status: StatusResolved, Record: record, FromCache: true}
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		logger.Warn("Cache lookup failed, resolving without cache",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
	metrics.CacheMisses.Inc()

	release, shared := r.claim(ctx, key)
	if shared != nil {
		notify(progress, phaseDone.String(), shared.SearchTier)
		return &Result{Status: StatusResolved, Record: shared, FromCache: true}
	}
	if release != nil {
		defer release()
	}

	st := state{phase: phaseCacheCheck}
	for !st.terminal() {
		st = r.step(ctx, equipment, st)
		notify(progress, st.phase.String(), st.tierIndex)
	}

	if st.phase == phaseEscalated {
		return &Result{
			Status:             StatusNeedsReview,
			BestConfidenceSeen: st.bestConfidence,
		}
	}

	return &Result{
		Status:       StatusResolved,
		Record:       st.record,
		FromCache:    st.fromCache,
		CacheWarning: st.cacheWarning,
	}
}

// step advances the state machine by one transition. Every external failure
// is converted to a state change; nothing escapes as a panic or error.
func (r *Resolver) step(ctx context.Context, equipment models.Equipment, st state) state {
	switch st.phase {
	case phaseCacheCheck:
		return r.stepCacheCheck(ctx, equipment, st)
	case phaseSearching:
		return r.stepSearching(ctx, equipment, st)
	case phaseJudging:
		return r.stepJudging(ctx, equipment, st)
	case phaseCaching:
		return r.stepCaching(ctx, equipment, st)
	case phaseEscalating:
		return r.stepEscalating(ctx, equipment, st)
	default:
		st.phase = phaseEscalated
		return st
	}
}

// stepCacheCheck re-checks the cache after the claim was acquired: a
// concurrent resolution for the same key may have written while we waited.
func (r *Resolver) stepCacheCheck(ctx context.Context, equipment models.Equipment, st state) state {
	record, err := r.cache.Lookup(ctx, equipment.Key())
	if err == nil {
		st.record = record
		st.fromCache = true
		st.phase = phaseDone
		return st
	}

	st.phase = phaseSearching
	return st
}

func (r *Resolver) stepSearching(ctx context.Context, equipment models.Equipment, st state) state {
	if ctx.Err() != nil {
		// Budget exhausted mid-resolution degrades to escalation.
		logger.Warn("Resolution budget exceeded, escalating",
			zap.String("key", equipment.Key().String()),
			zap.Int("tier_index", st.tierIndex),
		)
		st.phase = phaseEscalating
		return st
	}

	if st.tierIndex >= r.strategy.TierCount() {
		st.phase = phaseEscalating
		return st
	}

	tierLabel := strconv.Itoa(st.tierIndex + 1)

	tierStart := time.Now()
	tierResult, err := r.strategy.RunTier(ctx, equipment, st.tierIndex)
	metrics.TierDuration.WithLabelValues(tierLabel).Observe(time.Since(tierStart).Seconds())
	st.attempted = append(st.attempted, tierResult.Attempted...)
	if err != nil {
		// A failed tier yields nothing; move on to the next one.
		logger.Warn("Search tier failed",
			zap.Int("tier_index", st.tierIndex),
			zap.Error(err),
		)
		metrics.TierAttempts.WithLabelValues(tierLabel, "error").Inc()
		st.tierIndex++
		return st
	}

	if !tierResult.Found {
		metrics.TierAttempts.WithLabelValues(tierLabel, "no_candidate").Inc()
		st.tierIndex++
		return st
	}

	metrics.TierAttempts.WithLabelValues(tierLabel, "candidate").Inc()
	st.candidate = tierResult.Candidate
	st.validation = tierResult.Validation
	st.phase = phaseJudging
	return st
}

func (r *Resolver) stepJudging(ctx context.Context, equipment models.Equipment, st state) state {
	excerpt := r.fetcher.FetchExcerpt(ctx, st.candidate.URL, st.validation.ContentType)
	score := r.judge.Judge(ctx, equipment, st.candidate, st.validation, excerpt)
	if score.ParseFailed {
		metrics.JudgeParseFailures.Inc()
	}

	confidence := r.combineConfidence(st.validation.HeuristicScore, score.QualityScore())
	metrics.ConfidenceScore.Observe(float64(confidence))

	logger.Info("Candidate confidence computed",
		zap.String("url", st.candidate.URL),
		zap.Int("validation_score", st.validation.HeuristicScore),
		zap.Float64("quality_score", score.QualityScore()),
		zap.Int("confidence", confidence),
		zap.Int("threshold", r.cfg.AcceptanceThreshold),
	)

	if confidence > st.bestConfidence {
		st.bestConfidence = confidence
	}

	if confidence >= r.cfg.AcceptanceThreshold {
		st.record = &models.CacheRecord{
			Manufacturer:          equipment.Key().Manufacturer,
			ModelNumber:           equipment.Key().ModelNumber,
			ProductFamily:         equipment.ProductFamily,
			PDFURL:                st.candidate.URL,
			ConfidenceScore:       confidence,
			SearchTier:            st.candidate.Tier,
			ValidationScore:       st.validation.HeuristicScore,
			ValidationContentType: st.validation.ContentType,
			SearchCount:           1,
			CreatedAt:             time.Now(),
			LastAccessed:          time.Now(),
		}
		st.phase = phaseCaching
		return st
	}

	// Below threshold: keep the attempt for the audit trail and try the
	// next tier.
	st.attempted = append(st.attempted, models.AttemptedCandidate{
		Candidate:  st.candidate,
		Validation: st.validation,
		Confidence: confidence,
	})
	st.tierIndex++
	st.phase = phaseSearching
	return st
}

// stepCaching persists the accepted record. A storage failure must not lose
// the computed resolution: the record is still returned, the failure is
// logged as a soft warning and retried once in the background.
func (r *Resolver) stepCaching(ctx context.Context, equipment models.Equipment, st state) state {
	if err := r.cache.Upsert(ctx, st.record); err != nil {
		metrics.CacheWriteFailures.Inc()
		st.cacheWarning = fmt.Sprintf("resolution not durably cached: %v", err)
		logger.Error("Cache upsert failed after successful resolution",
			zap.String("key", equipment.Key().String()),
			zap.Error(err),
		)
		go r.retryUpsert(st.record)
	}

	if r.locker != nil {
		if err := r.locker.PublishResult(ctx, equipment.Key(), st.record, r.cfg.ClaimWait); err != nil {
			logger.Warn("Failed to publish result for waiters", zap.Error(err))
		}
	}

	st.phase = phaseDone
	return st
}

func (r *Resolver) stepEscalating(ctx context.Context, equipment models.Equipment, st state) state {
	key := equipment.Key()
	entry := &models.ReviewQueueEntry{
		ID:                  uuid.New().String(),
		Manufacturer:        key.Manufacturer,
		ModelNumber:         key.ModelNumber,
		ProductFamily:       equipment.ProductFamily,
		AttemptedCandidates: st.attempted,
		BestConfidenceSeen:  st.bestConfidence,
		CreatedAt:           time.Now(),
	}

	if err := r.reviews.Enqueue(ctx, entry); err != nil {
		// The escalation outcome stands even if the queue write failed.
		logger.Error("Failed to enqueue review entry",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	} else {
		metrics.Escalations.Inc()
	}

	logger.Info("Resolution escalated to human review",
		zap.String("key", key.String()),
		zap.Int("attempted_candidates", len(st.attempted)),
		zap.Int("best_confidence", st.bestConfidence),
	)

	st.phase = phaseEscalated
	return st
}

// combineConfidence folds the validation heuristic and the judge quality
// score into the 0-100 gate signal.
func (r *Resolver) combineConfidence(validationScore int, qualityScore float64) int {
	v := float64(validationScore) / 10
	q := qualityScore / 10
	return int(math.Round(100 * (r.cfg.ValidationWeight*v + r.cfg.JudgeWeight*q)))
}

// claim takes the per-key advisory lock. When another worker holds it, wait
// for its published result; a timed-out wait falls back to a fresh resolution
// so no caller blocks indefinitely.
func (r *Resolver) claim(ctx context.Context, key models.EquipmentKey) (func(), *models.CacheRecord) {
	if r.locker == nil {
		mu := r.keyMutex(key)
		mu.Lock()
		return mu.Unlock, nil
	}

	ownerID := uuid.New().String()
	err := r.locker.Claim(ctx, key, ownerID, r.cfg.ClaimTTL)
	if err == nil {
		return func() { r.locker.Release(context.Background(), key, ownerID) }, nil
	}

	if errors.Is(err, redis.ErrClaimHeld) {
		logger.Debug("Claim held elsewhere, waiting for published result",
			zap.String("key", key.String()),
		)
		record, waitErr := r.locker.WaitForResult(ctx, key, r.cfg.ClaimWait)
		if waitErr == nil && record != nil {
			return nil, record
		}
		logger.Info("No published result in time, resolving independently",
			zap.String("key", key.String()),
		)
		return nil, nil
	}

	// Locker unavailable: degrade to the in-process mutex rather than fail.
	logger.Warn("Claim store unavailable, using in-process lock", zap.Error(err))
	mu := r.keyMutex(key)
	mu.Lock()
	return mu.Unlock, nil
}

func (r *Resolver) keyMutex(key models.EquipmentKey) *sync.Mutex {
	r.keyMu.Lock()
	defer r.keyMu.Unlock()

	mu, ok := r.keys[key.String()]
	if !ok {
		mu = &sync.Mutex{}
		r.keys[key.String()] = mu
	}
	return mu
}

func (r *Resolver) retryUpsert(record *models.CacheRecord) {
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.cache.Upsert(ctx, record); err != nil {
		logger.Error("Background cache upsert retry failed",
			zap.String("key", record.Key().String()),
			zap.Error(err),
		)
		return
	}

	logger.Info("Background cache upsert retry succeeded",
		zap.String("key", record.Key().String()),
	)
}

func notify(progress ProgressFunc, phase string, tier int) {
	if progress != nil {
		progress(phase, tier)
	}
}
