package models

import (
	"strings"
	"time"
)

// EquipmentKey is the natural identity for cached manual resolutions.
// Normalize before any lookup or write.
type EquipmentKey struct {
	Manufacturer string
	ModelNumber  string
}

// Normalize lowercases and trims both components so that "ABB " and "abb"
// address the same cache row.
func (k EquipmentKey) Normalize() EquipmentKey {
	return EquipmentKey{
		Manufacturer: strings.ToLower(strings.TrimSpace(k.Manufacturer)),
		ModelNumber:  strings.ToLower(strings.TrimSpace(k.ModelNumber)),
	}
}

func (k EquipmentKey) String() string {
	n := k.Normalize()
	return n.Manufacturer + "|" + n.ModelNumber
}

// Equipment carries the full identification handed over by the OCR step.
type Equipment struct {
	Manufacturer  string
	ModelNumber   string
	ProductFamily string
	OCRText       string
}

func (e Equipment) Key() EquipmentKey {
	return EquipmentKey{Manufacturer: e.Manufacturer, ModelNumber: e.ModelNumber}.Normalize()
}

// CacheRecord is one row in manual_hunter_cache. At most one record exists
// per normalized EquipmentKey.
type CacheRecord struct {
	Manufacturer          string
	ModelNumber           string
	ProductFamily         string
	PDFURL                string
	ConfidenceScore       int
	SearchTier            int
	ValidationScore       int
	ValidationContentType string
	SearchCount           int
	CreatedAt             time.Time
	LastAccessed          time.Time
}

func (r CacheRecord) Key() EquipmentKey {
	return EquipmentKey{Manufacturer: r.Manufacturer, ModelNumber: r.ModelNumber}.Normalize()
}

// SearchCandidate is one URL produced by a search tier. Not persisted on its
// own; it is consumed immediately by validation.
type SearchCandidate struct {
	URL        string `json:"url"`
	Tier       int    `json:"tier"`
	RawSnippet string `json:"raw_snippet,omitempty"`
}

// ValidationResult describes what the validator observed for one candidate.
type ValidationResult struct {
	Reachable      bool   `json:"reachable"`
	HTTPStatus     int    `json:"http_status"`
	ContentType    string `json:"content_type"`
	ContentLength  int64  `json:"content_length"`
	HeuristicScore int    `json:"heuristic_score"`
	Error          string `json:"error,omitempty"`
}

// AttemptedCandidate pairs a candidate with its validation outcome and the
// confidence it reached, for the review queue audit trail.
type AttemptedCandidate struct {
	Candidate  SearchCandidate  `json:"candidate"`
	Validation ValidationResult `json:"validation"`
	Confidence int              `json:"confidence"`
}

// ReviewQueueEntry is an escalated resolution awaiting a human decision.
// Entries are append-only; a human action sets Resolved.
type ReviewQueueEntry struct {
	ID                  string
	Manufacturer        string
	ModelNumber         string
	ProductFamily       string
	AttemptedCandidates []AttemptedCandidate
	BestConfidenceSeen  int
	CreatedAt           time.Time
	Resolved            bool
}
