package cache

import (
	"context"
	"time"
)

// Entry is one cached extraction keyed by content hash.
type Entry struct {
	Text       string
	Confidence float64
	PageCount  int
	Timestamp  time.Time
}

// Store is one tier of the content-hash keyed extraction cache. Get returns
// (nil, nil) on a miss; implementations treat their own failures as misses
// where possible so the pipeline can continue.
type Store interface {
	Get(ctx context.Context, contentHash string) (*Entry, error)
	Put(ctx context.Context, contentHash string, entry Entry) error
}
