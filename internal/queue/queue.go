package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// humanConfidence is the confidence synthesized for a manually supplied
// manual URL. A human decision outranks any automated resolution.
const humanConfidence = 95

// humanTier marks records resolved by a person rather than a search tier.
const humanTier = 0

type store interface {
	EnqueueReview(ctx context.Context, entry *models.ReviewQueueEntry) error
	ListPendingReviews(ctx context.Context) ([]models.ReviewQueueEntry, error)
	MarkReviewResolved(ctx context.Context, key models.EquipmentKey) error
	Upsert(ctx context.Context, record *models.CacheRecord) error
}

// Service is the human-review escalation sink. Entries are append-only;
// resolving one flips its flag and feeds the supplied URL back into the cache.
type Service struct {
	store store
}

func NewService(store store) *Service {
	return &Service{store: store}
}

func (s *Service) Enqueue(ctx context.Context, entry *models.ReviewQueueEntry) error {
	return s.store.EnqueueReview(ctx, entry)
}

func (s *Service) ListPending(ctx context.Context) ([]models.ReviewQueueEntry, error) {
	return s.store.ListPendingReviews(ctx)
}

// Resolve records a human decision: the supplied manual URL is upserted as a
// high-confidence cache record and every pending entry for the key is marked
// resolved.
func (s *Service) Resolve(ctx context.Context, key models.EquipmentKey, manualURL string) error {
	key = key.Normalize()
	if manualURL == "" {
		return fmt.Errorf("manual URL is required")
	}

	record := &models.CacheRecord{
		Manufacturer:          key.Manufacturer,
		ModelNumber:           key.ModelNumber,
		PDFURL:                manualURL,
		ConfidenceScore:       humanConfidence,
		SearchTier:            humanTier,
		ValidationScore:       10,
		ValidationContentType: "application/pdf",
		SearchCount:           1,
		CreatedAt:             time.Now(),
		LastAccessed:          time.Now(),
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to cache human resolution: %w", err)
	}

	if err := s.store.MarkReviewResolved(ctx, key); err != nil {
		return fmt.Errorf("failed to mark review resolved: %w", err)
	}

	logger.Info("Review entry resolved by human",
		zap.String("manufacturer", key.Manufacturer),
		zap.String("model", key.ModelNumber),
		zap.String("pdf_url", manualURL),
	)

	return nil
}
