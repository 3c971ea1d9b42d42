package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/propdocs/plan-extractor/internal/cache"
	"github.com/propdocs/plan-extractor/internal/common"
)

// extractionCache is the durable cache tier: exact content-hash lookups,
// write-through upserts, no automatic expiry. It implements cache.Store so
// the extractor treats both tiers uniformly.
type extractionCache struct {
	db  *sql.DB
	log *slog.Logger
}

func NewExtractionCache(db *sql.DB, logger *slog.Logger) cache.Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionCache{db: db, log: logger}
}

func (r *extractionCache) Get(ctx context.Context, contentHash string) (*cache.Entry, error) {
	var e cache.Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT ocr_text, confidence, page_count, created_at FROM extraction_cache WHERE content_hash = $1`,
		contentHash,
	).Scan(&e.Text, &e.Confidence, &e.PageCount, &e.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("extraction_cache get failed", "content_hash", contentHash, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return &e, nil
}

func (r *extractionCache) Put(ctx context.Context, contentHash string, entry cache.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extraction_cache (content_hash, ocr_text, confidence, page_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (content_hash) DO UPDATE
		 SET ocr_text = EXCLUDED.ocr_text, confidence = EXCLUDED.confidence,
		     page_count = EXCLUDED.page_count`,
		contentHash, entry.Text, entry.Confidence, entry.PageCount, entry.Timestamp,
	)
	if err != nil {
		r.log.Error("extraction_cache put failed", "content_hash", contentHash, "error", err)
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.log.Debug("extraction_cache stored", "content_hash", contentHash, "bytes", len(entry.Text))
	return nil
}
