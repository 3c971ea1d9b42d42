package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdocs/plan-extractor/internal/cache"
	"github.com/propdocs/plan-extractor/internal/common"
)

func openTestDB(t *testing.T) (*sql.DB, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{
		DSN:         filepath.Join(t.TempDir(), "cache.db"),
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, logger) })
	return db, logger
}

func TestExtractionCache_RoundTrip(t *testing.T) {
	db, logger := openTestDB(t)
	ctx := context.Background()
	store := NewExtractionCache(db, logger)

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, got)

	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, "abc123", cache.Entry{
		Text:       "Kitchen 4.2 x 3.1",
		Confidence: 88.25,
		PageCount:  3,
		Timestamp:  created,
	}))

	got, err = store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kitchen 4.2 x 3.1", got.Text)
	assert.Equal(t, 88.25, got.Confidence)
	assert.Equal(t, 3, got.PageCount)
	assert.True(t, got.Timestamp.Equal(created))
}

func TestExtractionCache_DatabaseErrorSentinel(t *testing.T) {
	db, logger := openTestDB(t)
	store := NewExtractionCache(db, logger)
	require.NoError(t, db.Close())

	_, err := store.Get(context.Background(), "h1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDatabase))
}

func TestExtractionCache_PutOverwrites(t *testing.T) {
	db, logger := openTestDB(t)
	ctx := context.Background()
	store := NewExtractionCache(db, logger)

	ts := time.Now().UTC()
	require.NoError(t, store.Put(ctx, "h1", cache.Entry{Text: "first", Confidence: 10, Timestamp: ts}))
	require.NoError(t, store.Put(ctx, "h1", cache.Entry{Text: "second", Confidence: 90, Timestamp: ts}))

	got, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Text)
	assert.Equal(t, 90.0, got.Confidence)
}

func TestFailureLog_AppendAndList(t *testing.T) {
	db, logger := openTestDB(t)
	ctx := context.Background()
	repo := NewFailureLogRepository(db, logger)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, FailureEvent{
		DocumentID: "doc-1",
		TenantID:   "tenant-a",
		EventType:  "ocr_failure",
		Message:    "tesseract: exit status 1",
		Details:    map[string]any{"page": float64(2)},
		Timestamp:  base,
	}))
	require.NoError(t, repo.Append(ctx, FailureEvent{
		DocumentID: "doc-1",
		TenantID:   "tenant-a",
		EventType:  "ocr_failure",
		Message:    "tesseract: exit status 1",
		Details:    map[string]any{"page": float64(5)},
		Timestamp:  base.Add(time.Minute),
	}))
	require.NoError(t, repo.Append(ctx, FailureEvent{
		DocumentID: "doc-2",
		TenantID:   "tenant-a",
		EventType:  "ocr_failure",
		Message:    "pdftoppm produced no images",
		Timestamp:  base,
	}))

	events, err := repo.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, float64(2), events[0].Details["page"])
	assert.Equal(t, float64(5), events[1].Details["page"])
	assert.Equal(t, "tenant-a", events[0].TenantID)

	events, err = repo.ListByDocument(ctx, "doc-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "pdftoppm produced no images", events[0].Message)

	events, err = repo.ListByDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestHealthCheck(t *testing.T) {
	db, logger := openTestDB(t)
	assert.NoError(t, HealthCheck(context.Background(), db, time.Second, logger))
}
