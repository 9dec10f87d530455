package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/llm"
	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

const researchSystemPrompt = `You are a technical-documentation researcher for industrial equipment.

Given an equipment identity, produce direct URLs where its official maintenance
manual is most likely published. Prefer the manufacturer's documentation portal
and direct PDF links. Do not invent paths you are not confident exist.

Return ONLY a JSON array of objects:
[{"url": "https://...", "reason": "one sentence"}]`

type completionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ResearchProvider is tier 3: the most expensive fallback, asking a
// research-capable model where the manual lives. Run only after both cheaper
// tiers failed to produce a validated candidate.
type ResearchProvider struct {
	llmClient completionClient
	model     string
}

func NewResearchProvider(llmClient completionClient, model string) *ResearchProvider {
	return &ResearchProvider{
		llmClient: llmClient,
		model:     model,
	}
}

func (p *ResearchProvider) Tier() int    { return 3 }
func (p *ResearchProvider) Name() string { return "deep-research" }

func (p *ResearchProvider) Search(ctx context.Context, equipment models.Equipment, maxResults int) ([]models.SearchCandidate, error) {
	userPrompt := fmt.Sprintf("Find maintenance manual URLs for: %s", describeEquipment(equipment))
	if equipment.OCRText != "" {
		userPrompt += fmt.Sprintf("\n\nNameplate OCR text:\n%s", equipment.OCRText)
	}

	resp, err := p.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:        p.model,
		SystemPrompt: researchSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    600,
	})
	if err != nil {
		return nil, fmt.Errorf("research completion failed: %w", err)
	}

	candidates := parseResearchResponse(resp.Content, p.Tier(), maxResults)

	logger.Info("Research search completed",
		zap.String("equipment", describeEquipment(equipment)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

func parseResearchResponse(content string, tier, maxResults int) []models.SearchCandidate {
	s := strings.TrimSpace(content)
	if start := strings.Index(s, "["); start >= 0 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}

	var suggestions []struct {
		URL    string `json:"url"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(s), &suggestions); err != nil {
		logger.Warn("Research response unparseable", zap.Int("length", len(content)))
		return nil
	}

	candidates := make([]models.SearchCandidate, 0, len(suggestions))
	for _, sg := range suggestions {
		if len(candidates) >= maxResults {
			break
		}
		if !strings.HasPrefix(sg.URL, "http://") && !strings.HasPrefix(sg.URL, "https://") {
			continue
		}
		candidates = append(candidates, models.SearchCandidate{
			URL:        sg.URL,
			Tier:       tier,
			RawSnippet: sg.Reason,
		})
	}

	return candidates
}
