package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/resolver"
	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// ResolveRequest is the inbound payload from the OCR/identification step.
type ResolveRequest struct {
	Manufacturer  string `json:"manufacturer"`
	ModelNumber   string `json:"model_number"`
	ProductFamily string `json:"product_family"`
	OCRText       string `json:"ocr_text"`
}

func (r ResolveRequest) toEquipment() models.Equipment {
	return models.Equipment{
		Manufacturer:  r.Manufacturer,
		ModelNumber:   r.ModelNumber,
		ProductFamily: r.ProductFamily,
		OCRText:       r.OCRText,
	}
}

type ResolveHandler struct {
	resolver *resolver.Resolver
}

func NewResolveHandler(r *resolver.Resolver) *ResolveHandler {
	return &ResolveHandler{resolver: r}
}

func (h *ResolveHandler) HandleResolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse resolve request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"reason": "invalid request body",
		})
	}

	if req.Manufacturer == "" || req.ModelNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"reason": "manufacturer and model_number are required",
		})
	}

	result := h.resolver.Resolve(c.Context(), req.toEquipment())

	return c.JSON(resultPayload(result))
}

func resultPayload(result *resolver.Result) fiber.Map {
	switch result.Status {
	case resolver.StatusResolved:
		payload := fiber.Map{
			"status":           "resolved",
			"pdf_url":          result.Record.PDFURL,
			"confidence_score": result.Record.ConfidenceScore,
			"search_tier":      result.Record.SearchTier,
			"validation_score": result.Record.ValidationScore,
			"from_cache":       result.FromCache,
		}
		if result.CacheWarning != "" {
			payload["warning"] = result.CacheWarning
		}
		return payload
	case resolver.StatusNeedsReview:
		return fiber.Map{
			"status":               "needs_review",
			"best_confidence_seen": result.BestConfidenceSeen,
		}
	default:
		return fiber.Map{
			"status": "error",
			"reason": result.Reason,
		}
	}
}
