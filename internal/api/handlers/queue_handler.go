package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/queue"
	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

type QueueHandler struct {
	service *queue.Service
}

func NewQueueHandler(service *queue.Service) *QueueHandler {
	return &QueueHandler{service: service}
}

func (h *QueueHandler) ListPending(c *fiber.Ctx) error {
	entries, err := h.service.ListPending(c.Context())
	if err != nil {
		logger.Error("Failed to list pending reviews", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list pending reviews",
		})
	}

	payload := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, fiber.Map{
			"id":                   e.ID,
			"manufacturer":         e.Manufacturer,
			"model_number":         e.ModelNumber,
			"product_family":       e.ProductFamily,
			"attempted_candidates": e.AttemptedCandidates,
			"best_confidence_seen": e.BestConfidenceSeen,
			"created_at":           e.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"pending": payload})
}

func (h *QueueHandler) HandleResolve(c *fiber.Ctx) error {
	var req struct {
		Manufacturer string `json:"manufacturer"`
		ModelNumber  string `json:"model_number"`
		ManualURL    string `json:"manual_url"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Manufacturer == "" || req.ModelNumber == "" || req.ManualURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "manufacturer, model_number and manual_url are required",
		})
	}

	key := models.EquipmentKey{
		Manufacturer: req.Manufacturer,
		ModelNumber:  req.ModelNumber,
	}

	if err := h.service.Resolve(c.Context(), key, req.ManualURL); err != nil {
		logger.Error("Failed to resolve review entry", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve review entry",
		})
	}

	return c.JSON(fiber.Map{"status": "resolved"})
}
