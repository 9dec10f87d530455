package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// ScrapeProvider is tier 2: scrapes a search engine's result page directly.
// Slower and more fragile than tier 1, but free and broader.
type ScrapeProvider struct {
	httpClient *http.Client
}

func NewScrapeProvider(timeout time.Duration) *ScrapeProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ScrapeProvider{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *ScrapeProvider) Tier() int    { return 2 }
func (p *ScrapeProvider) Name() string { return "webscrape" }

func (p *ScrapeProvider) Search(ctx context.Context, equipment models.Equipment, maxResults int) ([]models.SearchCandidate, error) {
	query := buildQuery(equipment, false)
	searchURL := fmt.Sprintf("https://www.google.com/search?q=%s&num=%d",
		url.QueryEscape(query), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	candidates := make([]models.SearchCandidate, 0, maxResults)
	doc.Find("div.g").Each(func(i int, s *goquery.Selection) {
		if len(candidates) >= maxResults {
			return
		}

		link, _ := s.Find("a").Attr("href")
		link = cleanResultLink(link)
		if link == "" {
			return
		}

		candidates = append(candidates, models.SearchCandidate{
			URL:        link,
			Tier:       p.Tier(),
			RawSnippet: strings.TrimSpace(s.Find("div.VwiC3b").Text()),
		})
	})

	logger.Info("Scrape search completed",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// cleanResultLink unwraps the /url?q= redirect form result pages use and
// drops anything that is not an absolute http(s) URL.
func cleanResultLink(link string) string {
	if strings.HasPrefix(link, "/url?") {
		parsed, err := url.Parse(link)
		if err != nil {
			return ""
		}
		link = parsed.Query().Get("q")
	}

	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return ""
	}
	return link
}
