package validator

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/pkg/logger"
)

const (
	maxExcerptSentences = 30
	maxExcerptBytes     = 4000
)

// FetchExcerpt pulls a short, judge-sized text excerpt for an HTML candidate.
// Document content types are not downloaded; the judge scores those on
// metadata plus equipment context. Failures degrade to an empty excerpt.
func (v *Validator) FetchExcerpt(ctx context.Context, url, contentType string) string {
	if !strings.Contains(contentType, "text/html") {
		return ""
	}

	resp, err := v.probe(ctx, http.MethodGet, url)
	if err != nil {
		logger.Debug("Excerpt fetch failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Debug("Excerpt parse failed", zap.String("url", url), zap.Error(err))
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return ""
	}

	return capSentences(text)
}

// capSentences keeps the leading sentences of text, bounded by both a
// sentence count and a byte budget.
func capSentences(text string) string {
	if len(text) > maxExcerptBytes*4 {
		text = text[:maxExcerptBytes*4]
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		// Sentence segmentation is best effort; fall back to a byte cap.
		if len(text) > maxExcerptBytes {
			return text[:maxExcerptBytes]
		}
		return text
	}

	var builder strings.Builder
	for i, sentence := range doc.Sentences() {
		if i >= maxExcerptSentences || builder.Len()+len(sentence.Text) > maxExcerptBytes {
			break
		}
		builder.WriteString(sentence.Text)
		builder.WriteString(" ")
	}

	excerpt := strings.TrimSpace(builder.String())
	if excerpt == "" && len(text) > maxExcerptBytes {
		return text[:maxExcerptBytes]
	}
	if excerpt == "" {
		return text
	}
	return excerpt
}
