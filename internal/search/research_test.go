package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResearchResponsePlainArray(t *testing.T) {
	candidates := parseResearchResponse(`[
		{"url": "https://library.abb.com/acs580-manual.pdf", "reason": "official documentation portal"},
		{"url": "https://mirror.example/acs580.pdf", "reason": "known mirror"}
	]`, 3, 5)

	require.Len(t, candidates, 2)
	assert.Equal(t, "https://library.abb.com/acs580-manual.pdf", candidates[0].URL)
	assert.Equal(t, 3, candidates[0].Tier)
	assert.Equal(t, "official documentation portal", candidates[0].RawSnippet)
}

func TestParseResearchResponseFencedWithProse(t *testing.T) {
	candidates := parseResearchResponse("Here are the likely locations:\n```json\n"+
		`[{"url": "https://library.abb.com/acs580-manual.pdf", "reason": "portal"}]`+
		"\n```\nLet me know if you need more.", 3, 5)

	require.Len(t, candidates, 1)
	assert.Equal(t, "https://library.abb.com/acs580-manual.pdf", candidates[0].URL)
}

func TestParseResearchResponseDropsNonHTTP(t *testing.T) {
	candidates := parseResearchResponse(`[
		{"url": "ftp://files.example/manual.pdf", "reason": "ftp archive"},
		{"url": "https://library.abb.com/acs580-manual.pdf", "reason": "portal"}
	]`, 3, 5)

	require.Len(t, candidates, 1)
	assert.Equal(t, "https://library.abb.com/acs580-manual.pdf", candidates[0].URL)
}

func TestParseResearchResponseCapsResults(t *testing.T) {
	candidates := parseResearchResponse(`[
		{"url": "https://a.example/1.pdf"},
		{"url": "https://a.example/2.pdf"},
		{"url": "https://a.example/3.pdf"}
	]`, 3, 2)

	assert.Len(t, candidates, 2)
}

func TestParseResearchResponseUnparseable(t *testing.T) {
	assert.Nil(t, parseResearchResponse("I could not find any manuals.", 3, 5))
	assert.Nil(t, parseResearchResponse("", 3, 5))
}
