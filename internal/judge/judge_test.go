package judge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manual-hunter/backend/internal/llm"
	"github.com/manual-hunter/backend/internal/storage/models"
)

type stubLLM struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (s *stubLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.response}, nil
}

func testEquipment() models.Equipment {
	return models.Equipment{
		Manufacturer:  "ABB",
		ModelNumber:   "ACS580",
		ProductFamily: "drives",
	}
}

func TestParseScorePlainJSON(t *testing.T) {
	score := parseScore(`{"completeness": 7, "technical_accuracy": 8, "clarity": 6, "troubleshooting_usefulness": 9, "metadata_quality": 5, "feedback": "solid manual"}`)

	require.False(t, score.ParseFailed)
	assert.Equal(t, 7, score.Completeness)
	assert.Equal(t, 8, score.TechnicalAccuracy)
	assert.Equal(t, 6, score.Clarity)
	assert.Equal(t, 9, score.TroubleshootingUsefulness)
	assert.Equal(t, 5, score.MetadataQuality)
	assert.Equal(t, "solid manual", score.Feedback)
	assert.Equal(t, 7.0, score.QualityScore())
}

func TestParseScoreFencedJSON(t *testing.T) {
	raw := "```json\n{\"completeness\": 8, \"technical_accuracy\": 8, \"clarity\": 8, \"troubleshooting_usefulness\": 8, \"metadata_quality\": 8, \"feedback\": \"good\"}\n```"

	score := parseScore(raw)

	require.False(t, score.ParseFailed)
	assert.Equal(t, 8.0, score.QualityScore())
}

func TestParseScoreSurroundingProse(t *testing.T) {
	raw := `Here is my assessment:
{"completeness": 6, "technical_accuracy": 6, "clarity": 6, "troubleshooting_usefulness": 6, "metadata_quality": 6, "feedback": "ok"}
Let me know if you need anything else.`

	score := parseScore(raw)

	require.False(t, score.ParseFailed)
	assert.Equal(t, 6.0, score.QualityScore())
}

func TestParseScoreMalformed(t *testing.T) {
	score := parseScore("I would rate this manual very highly, maybe 9 out of 10.")

	assert.True(t, score.ParseFailed)
	assert.Equal(t, 0.0, score.QualityScore())
	assert.NotEmpty(t, score.RawResponse)
}

func TestParseScoreMissingCriteria(t *testing.T) {
	// A syntactically valid object without the five criteria violates the
	// response contract just like malformed JSON does.
	score := parseScore(`{"feedback": "nice"}`)
	assert.True(t, score.ParseFailed)
	assert.Equal(t, 0.0, score.QualityScore())

	score = parseScore(`{"completeness": 8, "technical_accuracy": 8, "feedback": "partial"}`)
	assert.True(t, score.ParseFailed)
	assert.NotEmpty(t, score.RawResponse)
}

func TestParseScoreClampsOutOfRange(t *testing.T) {
	score := parseScore(`{"completeness": 15, "technical_accuracy": -3, "clarity": 10, "troubleshooting_usefulness": 10, "metadata_quality": 10, "feedback": ""}`)

	require.False(t, score.ParseFailed)
	assert.Equal(t, 10, score.Completeness)
	assert.Equal(t, 0, score.TechnicalAccuracy)
}

func TestQualityScoreRounding(t *testing.T) {
	score := Score{
		Completeness:              9,
		TechnicalAccuracy:         8,
		Clarity:                   8,
		TroubleshootingUsefulness: 9,
		MetadataQuality:           8,
	}

	// 42 / 5 = 8.4
	assert.Equal(t, 8.4, score.QualityScore())
}

func TestJudgeProviderFailure(t *testing.T) {
	j := New(&stubLLM{err: errors.New("rate limited")}, time.Second)

	score := j.Judge(context.Background(), testEquipment(),
		models.SearchCandidate{URL: "https://example.com/manual.pdf", Tier: 1},
		models.ValidationResult{Reachable: true}, "")

	assert.Equal(t, 0.0, score.QualityScore())
	assert.NotEmpty(t, score.Error)
	assert.False(t, score.ParseFailed)
}

func TestJudgeIncludesEquipmentContext(t *testing.T) {
	stub := &stubLLM{response: `{"completeness": 5, "technical_accuracy": 5, "clarity": 5, "troubleshooting_usefulness": 5, "metadata_quality": 5, "feedback": ""}`}
	j := New(stub, time.Second)

	j.Judge(context.Background(), testEquipment(),
		models.SearchCandidate{URL: "https://example.com/manual.pdf", Tier: 2, RawSnippet: "ACS580 manual"},
		models.ValidationResult{Reachable: true, ContentType: "application/pdf"}, "sample excerpt")

	require.Len(t, stub.requests, 1)
	prompt := stub.requests[0].UserPrompt
	assert.Contains(t, prompt, "ABB")
	assert.Contains(t, prompt, "ACS580")
	assert.Contains(t, prompt, "https://example.com/manual.pdf")
	assert.Contains(t, prompt, "sample excerpt")
}
