package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/internal/storage/sqlite"
	"github.com/manual-hunter/backend/pkg/logger"
)

type CacheHandler struct {
	store *sqlite.Client
}

func NewCacheHandler(store *sqlite.Client) *CacheHandler {
	return &CacheHandler{store: store}
}

// HandleGet inspects a cache record without the hit side effects a
// resolution lookup would have.
func (h *CacheHandler) HandleGet(c *fiber.Ctx) error {
	key := models.EquipmentKey{
		Manufacturer: c.Params("manufacturer"),
		ModelNumber:  c.Params("model"),
	}

	record, err := h.store.Get(c.Context(), key)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no cached resolution for this equipment",
		})
	}
	if err != nil {
		logger.Error("Failed to read cache record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read cache record",
		})
	}

	return c.JSON(fiber.Map{
		"manufacturer":            record.Manufacturer,
		"model_number":            record.ModelNumber,
		"product_family":          record.ProductFamily,
		"pdf_url":                 record.PDFURL,
		"confidence_score":        record.ConfidenceScore,
		"search_tier":             record.SearchTier,
		"validation_score":        record.ValidationScore,
		"validation_content_type": record.ValidationContentType,
		"search_count":            record.SearchCount,
		"created_at":              record.CreatedAt.Unix(),
		"last_accessed":           record.LastAccessed.Unix(),
	})
}
