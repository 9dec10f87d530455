package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// SerpProvider is tier 1: a metered search API, cheap and fast, biased
// toward PDF results.
type SerpProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewSerpProvider(apiKey string, timeout time.Duration) *SerpProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SerpProvider{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *SerpProvider) Tier() int    { return 1 }
func (p *SerpProvider) Name() string { return "serpapi" }

func (p *SerpProvider) Search(ctx context.Context, equipment models.Equipment, maxResults int) ([]models.SearchCandidate, error) {
	query := buildQuery(equipment, true)

	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", p.apiKey)
	params.Add("num", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://serpapi.com/search?%s", params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}

	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	candidates := make([]models.SearchCandidate, 0, len(searchResp.OrganicResults))
	for _, r := range searchResp.OrganicResults {
		if r.Link == "" {
			continue
		}
		candidates = append(candidates, models.SearchCandidate{
			URL:        r.Link,
			Tier:       p.Tier(),
			RawSnippet: r.Snippet,
		})
	}

	logger.Info("Serp search completed",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}
