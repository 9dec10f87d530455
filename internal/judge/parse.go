package judge

import (
	"encoding/json"
	"strings"
)

// parseScore applies the strict response contract: after stripping known
// wrapper markers the remainder must be a JSON object carrying all five
// criteria. A syntactically valid object missing any criterion is still a
// contract violation. Anything unparseable is a ParseFailed score, not an
// error.
func parseScore(raw string) Score {
	cleaned := stripWrappers(raw)

	var payload struct {
		Completeness              *int   `json:"completeness"`
		TechnicalAccuracy         *int   `json:"technical_accuracy"`
		Clarity                   *int   `json:"clarity"`
		TroubleshootingUsefulness *int   `json:"troubleshooting_usefulness"`
		MetadataQuality           *int   `json:"metadata_quality"`
		Feedback                  string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Score{ParseFailed: true, RawResponse: raw}
	}

	criteria := []*int{
		payload.Completeness,
		payload.TechnicalAccuracy,
		payload.Clarity,
		payload.TroubleshootingUsefulness,
		payload.MetadataQuality,
	}
	for _, v := range criteria {
		if v == nil {
			return Score{ParseFailed: true, RawResponse: raw}
		}
	}

	return Score{
		Completeness:              clamp(*payload.Completeness),
		TechnicalAccuracy:         clamp(*payload.TechnicalAccuracy),
		Clarity:                   clamp(*payload.Clarity),
		TroubleshootingUsefulness: clamp(*payload.TroubleshootingUsefulness),
		MetadataQuality:           clamp(*payload.MetadataQuality),
		Feedback:                  payload.Feedback,
	}
}

// stripWrappers removes fenced code blocks and any prose surrounding the
// outermost JSON object. Models routinely wrap JSON despite instructions.
func stripWrappers(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return s
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
