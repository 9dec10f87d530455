package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/storage/models"
	"github.com/manual-hunter/backend/pkg/logger"
)

// ErrNotFound is returned when no row exists for the requested key.
var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manual_hunter_cache (
		manufacturer TEXT NOT NULL,
		model_number TEXT NOT NULL,
		product_family TEXT,
		pdf_url TEXT NOT NULL,
		confidence_score INTEGER NOT NULL,
		search_tier INTEGER NOT NULL,
		validation_score INTEGER NOT NULL,
		validation_content_type TEXT,
		search_count INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL,
		UNIQUE(manufacturer, model_number)
	);
	CREATE INDEX IF NOT EXISTS idx_cache_last_accessed ON manual_hunter_cache(last_accessed);
	CREATE INDEX IF NOT EXISTS idx_cache_tier ON manual_hunter_cache(search_tier);

	CREATE TABLE IF NOT EXISTS manual_hunter_queue (
		id TEXT PRIMARY KEY,
		manufacturer TEXT NOT NULL,
		model_number TEXT NOT NULL,
		product_family TEXT,
		attempted_candidates TEXT NOT NULL,
		best_confidence INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_queue_resolved ON manual_hunter_queue(resolved);
	CREATE INDEX IF NOT EXISTS idx_queue_key ON manual_hunter_queue(manufacturer, model_number);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// Lookup returns the cache record for key and, atomically with the read,
// bumps search_count and refreshes last_accessed. Returns ErrNotFound on miss.
func (c *Client) Lookup(ctx context.Context, key models.EquipmentKey) (*models.CacheRecord, error) {
	key = key.Normalize()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin lookup tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE manual_hunter_cache
		SET search_count = search_count + 1, last_accessed = ?
		WHERE manufacturer = ? AND model_number = ?
	`, time.Now().Unix(), key.Manufacturer, key.ModelNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to bump cache hit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	record, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT manufacturer, model_number, product_family, pdf_url, confidence_score,
			search_tier, validation_score, validation_content_type, search_count,
			created_at, last_accessed
		FROM manual_hunter_cache
		WHERE manufacturer = ? AND model_number = ?
	`, key.Manufacturer, key.ModelNumber))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lookup tx: %w", err)
	}

	logger.Debug("Cache hit",
		zap.String("manufacturer", key.Manufacturer),
		zap.String("model", key.ModelNumber),
		zap.Int("search_count", record.SearchCount),
	)

	return record, nil
}

// Get reads a record without the hit side effects. Used by the inspection API.
func (c *Client) Get(ctx context.Context, key models.EquipmentKey) (*models.CacheRecord, error) {
	key = key.Normalize()

	record, err := scanRecord(c.db.QueryRowContext(ctx, `
		SELECT manufacturer, model_number, product_family, pdf_url, confidence_score,
			search_tier, validation_score, validation_content_type, search_count,
			created_at, last_accessed
		FROM manual_hunter_cache
		WHERE manufacturer = ? AND model_number = ?
	`, key.Manufacturer, key.ModelNumber))
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Upsert inserts or replaces the resolution for the record's key. On conflict
// the resolution fields are overwritten while the prior search_count is
// preserved and incremented by one.
func (c *Client) Upsert(ctx context.Context, record *models.CacheRecord) error {
	key := record.Key()
	now := time.Now().Unix()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO manual_hunter_cache (manufacturer, model_number, product_family,
			pdf_url, confidence_score, search_tier, validation_score,
			validation_content_type, search_count, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(manufacturer, model_number) DO UPDATE SET
			product_family = excluded.product_family,
			pdf_url = excluded.pdf_url,
			confidence_score = excluded.confidence_score,
			search_tier = excluded.search_tier,
			validation_score = excluded.validation_score,
			validation_content_type = excluded.validation_content_type,
			search_count = search_count + 1,
			last_accessed = excluded.last_accessed
	`,
		key.Manufacturer,
		key.ModelNumber,
		record.ProductFamily,
		record.PDFURL,
		record.ConfidenceScore,
		record.SearchTier,
		record.ValidationScore,
		record.ValidationContentType,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache record: %w", err)
	}

	logger.Info("Cache record upserted",
		zap.String("manufacturer", key.Manufacturer),
		zap.String("model", key.ModelNumber),
		zap.String("pdf_url", record.PDFURL),
		zap.Int("confidence", record.ConfidenceScore),
		zap.Int("tier", record.SearchTier),
	)

	return nil
}

// EnqueueReview appends an escalated case. attempted_candidates is stored as JSON.
func (c *Client) EnqueueReview(ctx context.Context, entry *models.ReviewQueueEntry) error {
	candidatesJSON, err := json.Marshal(entry.AttemptedCandidates)
	if err != nil {
		return fmt.Errorf("failed to marshal attempted candidates: %w", err)
	}

	key := models.EquipmentKey{
		Manufacturer: entry.Manufacturer,
		ModelNumber:  entry.ModelNumber,
	}.Normalize()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO manual_hunter_queue (id, manufacturer, model_number, product_family,
			attempted_candidates, best_confidence, created_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		entry.ID,
		key.Manufacturer,
		key.ModelNumber,
		entry.ProductFamily,
		string(candidatesJSON),
		entry.BestConfidenceSeen,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue review entry: %w", err)
	}

	logger.Info("Review entry enqueued",
		zap.String("entry_id", entry.ID),
		zap.String("manufacturer", key.Manufacturer),
		zap.String("model", key.ModelNumber),
		zap.Int("best_confidence", entry.BestConfidenceSeen),
	)

	return nil
}

func (c *Client) ListPendingReviews(ctx context.Context) ([]models.ReviewQueueEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, manufacturer, model_number, product_family, attempted_candidates,
			best_confidence, created_at, resolved
		FROM manual_hunter_queue
		WHERE resolved = 0
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	defer rows.Close()

	var entries []models.ReviewQueueEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// MarkReviewResolved flips the resolved flag on every pending entry for key.
// Entries are never deleted; the audit trail stays intact.
func (c *Client) MarkReviewResolved(ctx context.Context, key models.EquipmentKey) error {
	key = key.Normalize()

	res, err := c.db.ExecContext(ctx, `
		UPDATE manual_hunter_queue
		SET resolved = 1
		WHERE manufacturer = ? AND model_number = ? AND resolved = 0
	`, key.Manufacturer, key.ModelNumber)
	if err != nil {
		return fmt.Errorf("failed to mark review resolved: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.CacheRecord, error) {
	var r models.CacheRecord
	var productFamily, contentType sql.NullString
	var createdAt, lastAccessed int64

	err := row.Scan(
		&r.Manufacturer,
		&r.ModelNumber,
		&productFamily,
		&r.PDFURL,
		&r.ConfidenceScore,
		&r.SearchTier,
		&r.ValidationScore,
		&contentType,
		&r.SearchCount,
		&createdAt,
		&lastAccessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache record: %w", err)
	}

	r.ProductFamily = productFamily.String
	r.ValidationContentType = contentType.String
	r.CreatedAt = time.Unix(createdAt, 0)
	r.LastAccessed = time.Unix(lastAccessed, 0)

	return &r, nil
}

func scanReviewEntry(row rowScanner) (*models.ReviewQueueEntry, error) {
	var e models.ReviewQueueEntry
	var productFamily sql.NullString
	var candidatesJSON string
	var createdAt int64
	var resolved int

	err := row.Scan(
		&e.ID,
		&e.Manufacturer,
		&e.ModelNumber,
		&productFamily,
		&candidatesJSON,
		&e.BestConfidenceSeen,
		&createdAt,
		&resolved,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan review entry: %w", err)
	}

	if err := json.Unmarshal([]byte(candidatesJSON), &e.AttemptedCandidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempted candidates: %w", err)
	}

	e.ProductFamily = productFamily.String
	e.CreatedAt = time.Unix(createdAt, 0)
	e.Resolved = resolved == 1

	return &e, nil
}
