package judge

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/llm"
	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

const systemPrompt = `You are a maintenance-documentation quality assessor for industrial equipment.

Rate the candidate manual on five criteria, each an integer from 0 to 10:
1. completeness: does it cover the full equipment, not a single subsystem?
2. technical_accuracy: are specifications and procedures credible and specific?
3. clarity: is it organized and readable for a field technician?
4. troubleshooting_usefulness: does it help diagnose and repair faults?
5. metadata_quality: does the title/source clearly match the manufacturer and model?

Return ONLY a JSON object with exactly these keys:
{"completeness": 0, "technical_accuracy": 0, "clarity": 0, "troubleshooting_usefulness": 0, "metadata_quality": 0, "feedback": "one sentence"}

No prose outside the JSON object.`

// Score is the judge's verdict for one candidate. All failure states live
// inside the score; callers never receive an error for a bad model response.
type Score struct {
	Completeness              int    `json:"completeness"`
	TechnicalAccuracy         int    `json:"technical_accuracy"`
	Clarity                   int    `json:"clarity"`
	TroubleshootingUsefulness int    `json:"troubleshooting_usefulness"`
	MetadataQuality           int    `json:"metadata_quality"`
	Feedback                  string `json:"feedback"`

	ParseFailed bool   `json:"-"`
	RawResponse string `json:"-"`
	Error       string `json:"-"`
}

// QualityScore is the arithmetic mean of the five criteria, rounded to one
// decimal. This is the single confidence signal the orchestrator consumes.
func (s Score) QualityScore() float64 {
	sum := s.Completeness + s.TechnicalAccuracy + s.Clarity +
		s.TroubleshootingUsefulness + s.MetadataQuality
	return math.Round(float64(sum)/5*10) / 10
}

type completionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Judge struct {
	llmClient completionClient
	timeout   time.Duration
}

func New(llmClient completionClient, timeout time.Duration) *Judge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Judge{
		llmClient: llmClient,
		timeout:   timeout,
	}
}

// Judge scores a validated candidate. A provider failure or timeout yields an
// all-zero score with Error populated; a malformed response yields an all-zero
// score with ParseFailed set. Neither aborts the resolution.
func (j *Judge) Judge(ctx context.Context, equipment models.Equipment, candidate models.SearchCandidate, validation models.ValidationResult, excerpt string) Score {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	resp, err := j.llmClient.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(equipment, candidate, validation, excerpt),
		Temperature:  0.1,
		MaxTokens:    300,
	})
	if err != nil {
		logger.Warn("Judge call failed",
			zap.String("url", candidate.URL),
			zap.Error(err),
		)
		return Score{Error: err.Error()}
	}

	score := parseScore(resp.Content)
	if score.ParseFailed {
		logger.Warn("Judge response unparseable",
			zap.String("url", candidate.URL),
			zap.Int("response_length", len(resp.Content)),
		)
		return score
	}

	logger.Info("Candidate judged",
		zap.String("url", candidate.URL),
		zap.Float64("quality_score", score.QualityScore()),
	)

	return score
}

func buildUserPrompt(equipment models.Equipment, candidate models.SearchCandidate, validation models.ValidationResult, excerpt string) string {
	prompt := fmt.Sprintf(`Equipment:
- Manufacturer: %s
- Model: %s
- Product family: %s

Candidate manual:
- URL: %s
- Content type: %s
- Content length: %d bytes
- Search snippet: %s`,
		equipment.Manufacturer,
		equipment.ModelNumber,
		equipment.ProductFamily,
		candidate.URL,
		validation.ContentType,
		validation.ContentLength,
		candidate.RawSnippet,
	)

	if excerpt != "" {
		prompt += fmt.Sprintf("\n\nPage excerpt:\n%s", excerpt)
	}

	return prompt + "\n\nScore this candidate."
}
