package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manual-hunter/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	return client
}

func sampleRecord() *models.CacheRecord {
	return &models.CacheRecord{
		Manufacturer:          "abb",
		ModelNumber:           "acs580",
		ProductFamily:         "drives",
		PDFURL:                "https://library.abb.com/acs580-manual.pdf",
		ConfidenceScore:       86,
		SearchTier:            1,
		ValidationScore:       9,
		ValidationContentType: "application/pdf",
	}
}

func TestUpsertAndGet(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Upsert(ctx, sampleRecord()))

	record, err := client.Get(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	require.NoError(t, err)

	assert.Equal(t, "https://library.abb.com/acs580-manual.pdf", record.PDFURL)
	assert.Equal(t, 86, record.ConfidenceScore)
	assert.Equal(t, 1, record.SearchTier)
	assert.Equal(t, 9, record.ValidationScore)
	assert.Equal(t, "application/pdf", record.ValidationContentType)
	assert.Equal(t, 1, record.SearchCount)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), models.EquipmentKey{Manufacturer: "nobody", ModelNumber: "nothing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupBumpsSearchCount(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Upsert(ctx, sampleRecord()))

	first, err := client.Lookup(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.SearchCount)

	second, err := client.Lookup(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	require.NoError(t, err)
	assert.Equal(t, 3, second.SearchCount)
}

func TestLookupMissHasNoSideEffects(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Lookup(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDoesNotBumpSearchCount(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"}

	require.NoError(t, client.Upsert(ctx, sampleRecord()))

	_, err := client.Get(ctx, key)
	require.NoError(t, err)
	_, err = client.Get(ctx, key)
	require.NoError(t, err)

	record, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, record.SearchCount)
}

func TestUpsertReplacesResolutionKeepsCount(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"}

	require.NoError(t, client.Upsert(ctx, sampleRecord()))

	// Two hits bring the count to 3.
	_, err := client.Lookup(ctx, key)
	require.NoError(t, err)
	_, err = client.Lookup(ctx, key)
	require.NoError(t, err)

	replacement := sampleRecord()
	replacement.PDFURL = "https://library.abb.com/acs580-manual-rev2.pdf"
	replacement.ConfidenceScore = 92
	replacement.SearchTier = 2
	require.NoError(t, client.Upsert(ctx, replacement))

	record, err := client.Get(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, "https://library.abb.com/acs580-manual-rev2.pdf", record.PDFURL)
	assert.Equal(t, 92, record.ConfidenceScore)
	assert.Equal(t, 2, record.SearchTier)
	// Conflict preserves the prior count and adds one for the new resolution.
	assert.Equal(t, 4, record.SearchCount)
}

func TestUpsertKeepsSingleRowPerKey(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Upsert(ctx, sampleRecord()))
	}

	var count int
	err := client.db.QueryRow(`SELECT COUNT(*) FROM manual_hunter_cache`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestKeyNormalizationOnWrite(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	record := sampleRecord()
	record.Manufacturer = "  ABB "
	record.ModelNumber = "Acs580"
	require.NoError(t, client.Upsert(ctx, record))

	got, err := client.Get(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	require.NoError(t, err)
	assert.Equal(t, "abb", got.Manufacturer)
	assert.Equal(t, "acs580", got.ModelNumber)
}

func TestReviewQueueLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	entry := &models.ReviewQueueEntry{
		ID:            "entry-1",
		Manufacturer:  "ABB",
		ModelNumber:   "ACS580",
		ProductFamily: "drives",
		AttemptedCandidates: []models.AttemptedCandidate{
			{
				Candidate:  models.SearchCandidate{URL: "https://dead.example/a.pdf", Tier: 1},
				Validation: models.ValidationResult{Reachable: false, Error: "connection refused"},
			},
			{
				Candidate:  models.SearchCandidate{URL: "https://thin.example/flyer.html", Tier: 2},
				Validation: models.ValidationResult{Reachable: true, HTTPStatus: 200, ContentType: "text/html", HeuristicScore: 5},
				Confidence: 44,
			},
		},
		BestConfidenceSeen: 44,
		CreatedAt:          time.Now(),
	}
	require.NoError(t, client.EnqueueReview(ctx, entry))

	pending, err := client.ListPendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got := pending[0]
	assert.Equal(t, "entry-1", got.ID)
	assert.Equal(t, "abb", got.Manufacturer)
	assert.Equal(t, "acs580", got.ModelNumber)
	assert.Equal(t, 44, got.BestConfidenceSeen)
	assert.False(t, got.Resolved)
	require.Len(t, got.AttemptedCandidates, 2)
	assert.Equal(t, "https://dead.example/a.pdf", got.AttemptedCandidates[0].Candidate.URL)
	assert.Equal(t, 44, got.AttemptedCandidates[1].Confidence)

	require.NoError(t, client.MarkReviewResolved(ctx, models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"}))

	pending, err = client.ListPendingReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkReviewResolvedNoPending(t *testing.T) {
	client := newTestClient(t)

	err := client.MarkReviewResolved(context.Background(), models.EquipmentKey{Manufacturer: "abb", ModelNumber: "acs580"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPendingOrderedOldestFirst(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	older := &models.ReviewQueueEntry{
		ID: "older", Manufacturer: "abb", ModelNumber: "acs580",
		AttemptedCandidates: []models.AttemptedCandidate{},
		CreatedAt:           time.Now().Add(-time.Hour),
	}
	newer := &models.ReviewQueueEntry{
		ID: "newer", Manufacturer: "siemens", ModelNumber: "g120",
		AttemptedCandidates: []models.AttemptedCandidate{},
		CreatedAt:           time.Now(),
	}
	require.NoError(t, client.EnqueueReview(ctx, newer))
	require.NoError(t, client.EnqueueReview(ctx, older))

	pending, err := client.ListPendingReviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "older", pending[0].ID)
	assert.Equal(t, "newer", pending[1].ID)
}
