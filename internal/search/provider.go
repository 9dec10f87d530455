package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/manual-hunter/backend/internal/storage/models"
)

// Provider is one ranked search tier. Tiers are ordered cheapest first; the
// strategy never invokes a tier unless every cheaper one failed to produce a
// validated candidate.
type Provider interface {
	Tier() int
	Name() string
	Search(ctx context.Context, equipment models.Equipment, maxResults int) ([]models.SearchCandidate, error)
}

// buildQuery assembles the manual-hunting query from equipment identity.
// Tier 1 targets the manufacturer's own documents; later tiers broaden.
func buildQuery(equipment models.Equipment, preferPDF bool) string {
	parts := []string{
		strings.TrimSpace(equipment.Manufacturer),
		strings.TrimSpace(equipment.ModelNumber),
	}
	if family := strings.TrimSpace(equipment.ProductFamily); family != "" {
		parts = append(parts, family)
	}
	parts = append(parts, "maintenance manual")
	if preferPDF {
		parts = append(parts, "filetype:pdf")
	}
	return strings.Join(parts, " ")
}

func describeEquipment(equipment models.Equipment) string {
	desc := fmt.Sprintf("%s %s", equipment.Manufacturer, equipment.ModelNumber)
	if equipment.ProductFamily != "" {
		desc += fmt.Sprintf(" (%s)", equipment.ProductFamily)
	}
	return desc
}
