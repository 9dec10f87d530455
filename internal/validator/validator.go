package validator

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// Scores assigned by classifyResponse. The heuristic scale is 0-10: zero for
// anything unreachable, partial credit for an HTML landing page, full credit
// for a document content type with a plausible size.
const (
	scoreUnreachable  = 0
	scoreUnknownType  = 4
	scoreHTML         = 5
	scoreDocumentBase = 8

	plausibleDocBytes = 10 * 1024
	largeDocBytes     = 1024 * 1024
)

type Validator struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Validate probes url with a HEAD request (falling back to GET where HEAD is
// rejected) and classifies the response. Network failures are reported inside
// the result, never as an error.
func (v *Validator) Validate(ctx context.Context, url string) models.ValidationResult {
	resp, err := v.probe(ctx, "HEAD", url)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		resp, err = v.probe(ctx, "GET", url)
	}
	if err != nil {
		logger.Debug("URL probe failed", zap.String("url", url), zap.Error(err))
		return models.ValidationResult{
			Reachable:      false,
			HeuristicScore: scoreUnreachable,
			Error:          err.Error(),
		}
	}
	defer resp.Body.Close()

	result := classifyResponse(resp)

	logger.Debug("URL validated",
		zap.String("url", url),
		zap.Int("status", result.HTTPStatus),
		zap.String("content_type", result.ContentType),
		zap.Int("score", result.HeuristicScore),
	)

	return result
}

func (v *Validator) probe(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return v.httpClient.Do(req)
}

func classifyResponse(resp *http.Response) models.ValidationResult {
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	result := models.ValidationResult{
		HTTPStatus:    resp.StatusCode,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Reachable = false
		result.HeuristicScore = scoreUnreachable
		result.Error = "non-2xx status"
		return result
	}

	result.Reachable = true

	switch {
	case isDocumentType(contentType):
		score := scoreDocumentBase
		if resp.ContentLength >= plausibleDocBytes {
			score++
		}
		if resp.ContentLength >= largeDocBytes {
			score++
		}
		result.HeuristicScore = score
	case strings.Contains(contentType, "text/html"):
		result.HeuristicScore = scoreHTML
	default:
		result.HeuristicScore = scoreUnknownType
	}

	return result
}

func isDocumentType(contentType string) bool {
	documentTypes := []string{
		"application/pdf",
		"application/x-pdf",
		"application/vnd.openxmlformats-officedocument",
		"application/msword",
	}

	for _, t := range documentTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
