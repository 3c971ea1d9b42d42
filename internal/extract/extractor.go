package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/propdocs/plan-extractor/constants"
	"github.com/propdocs/plan-extractor/internal/cache"
	"github.com/propdocs/plan-extractor/internal/common"
	"github.com/propdocs/plan-extractor/internal/dimensions"
	"github.com/propdocs/plan-extractor/internal/repository"
	"github.com/propdocs/plan-extractor/internal/vision"
)

// VisionSeedConfidence is the fixed score for room facts taken from a
// schema-validated vision rooms block.
const VisionSeedConfidence = 0.85

// Config holds the cascade thresholds. Empirically chosen defaults live in
// constants; treat them as tunables, not guarantees.
type Config struct {
	MinTextLayerChars    int
	MinCombinedChars     int
	VisionCrossoverChars int
	MaxVisionPages       int
	TenantID             string
}

// Deps are the pipeline's collaborators. Vision, Durable, and Failures may
// be nil; the cascade degrades accordingly. MemCache defaults to a fresh
// in-process TTL cache.
type Deps struct {
	TextLayer TextLayerExtractor
	OCR       OCREngine
	Vision    VisionReader
	MemCache  cache.Store
	Durable   cache.Store
	Failures  FailureSink
}

// Extractor coordinates the three-strategy cascade: text layer, then OCR,
// then vision, each invoked only when cheaper strategies yielded too little.
// It always returns a Result; strategy errors become DocumentFailures.
type Extractor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLayerChars <= 0 {
		cfg.MinTextLayerChars = constants.MinTextLayerChars
	}
	if cfg.MinCombinedChars <= 0 {
		cfg.MinCombinedChars = constants.MinCombinedChars
	}
	if cfg.VisionCrossoverChars <= 0 {
		cfg.VisionCrossoverChars = constants.VisionCrossoverChars
	}
	if cfg.MaxVisionPages <= 0 {
		cfg.MaxVisionPages = constants.DefaultMaxVisionPages
	}
	if deps.MemCache == nil {
		deps.MemCache = cache.NewMemory(constants.CacheTTL)
	}
	return &Extractor{cfg: cfg, deps: deps, logger: logger}
}

// Extract runs the cascade over one document. The returned error is always
// nil today; it exists so callers do not have to change when a genuinely
// fatal class appears.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()
	res := Result{ExtractionMethod: constants.MethodText}

	hash := contentHash(req.Data)
	docID := req.DocumentID
	if docID == "" {
		docID = common.DocumentIDFromContext(ctx)
	}
	if docID == "" {
		docID = hash
	}

	fail := func(page int, err error) {
		f := DocumentFailure{Page: page, Error: err.Error(), Timestamp: time.Now().UTC()}
		res.DocumentFailures = append(res.DocumentFailures, f)
		e.journal(ctx, docID, req.Filename, f)
	}

	if len(req.Data) == 0 {
		e.logger.Warn("extract.empty_input", "req_id", rid, "filename", req.Filename)
		fail(0, errors.New("empty document"))
		return res, nil
	}
	format := detectFormat(req.Data, req.Filename)
	if format == "" {
		fail(0, fmt.Errorf("%w: content type %q", common.ErrUnsupported, mimetype.Detect(req.Data).String()))
		return res, nil
	}

	e.logger.Info("extract.start",
		"req_id", rid,
		"filename", req.Filename,
		"format", string(format),
		"bytes", len(req.Data),
		"content_hash", hash[:12],
		"force_ocr", req.Options.ForceOCR,
		"use_vision", req.Options.UseVision,
	)

	// 1) text layer, unless bypassed. Images have none.
	var textLayerText string
	if format == constants.PDF && !req.Options.ForceOCR {
		text, pages, err := e.deps.TextLayer.ExtractText(ctx, req.Data)
		if err != nil {
			fail(0, fmt.Errorf("text layer: %w", err))
		} else {
			textLayerText = text
			res.PageCount = pages
		}
	}
	res.TextLayerText = textLayerText

	// 2) OCR when the text layer came up short.
	var ocrText string
	if req.Options.ForceOCR || format == constants.IMAGE ||
		len(strings.TrimSpace(textLayerText)) < e.cfg.MinTextLayerChars {
		ocrText = e.runOCR(ctx, rid, req, format, hash, &res, fail)
	}
	res.OCRText = ocrText

	// 3) vision, when allowed and everything else is still starved.
	combined := len(textLayerText) + len(ocrText)
	var visionText string
	var visionSeed []dimensions.Extraction
	if e.deps.Vision != nil && e.deps.Vision.Enabled() &&
		(req.Options.UseVision || combined < e.cfg.MinCombinedChars || combined < e.cfg.VisionCrossoverChars) {
		maxPages := req.Options.MaxVisionPages
		if maxPages <= 0 {
			maxPages = e.cfg.MaxVisionPages
		}
		out, err := e.deps.Vision.Transcribe(ctx, req.Data, format, maxPages)
		if err != nil {
			fail(0, fmt.Errorf("vision: %w", err))
		} else {
			for _, pf := range out.Failures {
				fail(pf.Page, pf.Err)
			}
			visionText = out.Text
			visionSeed = seedFromVision(out)
		}
	}

	// 4) merge whichever texts exist, then normalize the winner.
	merged, method := chooseMerged(textLayerText, ocrText, visionText, e.cfg.MinTextLayerChars)
	normalized := dimensions.Normalize(merged)
	res.Text = normalized
	res.MergedText = normalized
	res.ExtractionMethod = method

	// 5) structured facts: vision seeds take precedence, first match per
	// canonical room wins.
	res.RoomDimensions = mergeDimensions(visionSeed, dimensions.Scan(normalized))

	e.logger.Info("extract.ok",
		"req_id", rid,
		"method", string(method),
		"pages", res.PageCount,
		"confidence", res.Confidence,
		"rooms", len(res.RoomDimensions),
		"failures", len(res.DocumentFailures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// runOCR consults both cache tiers before invoking the engine, and writes
// through both on a miss. Cache problems are non-fatal.
func (e *Extractor) runOCR(ctx context.Context, rid string, req Request, format constants.Format, hash string, res *Result, fail func(int, error)) string {
	if entry := e.cacheLookup(ctx, hash); entry != nil {
		e.logger.Info("extract.ocr.cache_hit", "req_id", rid, "content_hash", hash[:12])
		res.Confidence = entry.Confidence
		if res.PageCount == 0 {
			res.PageCount = entry.PageCount
		}
		return entry.Text
	}

	out, err := e.deps.OCR.Recognize(ctx, req.Data, format)
	if err != nil {
		fail(0, fmt.Errorf("ocr: %w", err))
		return ""
	}
	for _, pf := range out.Failures {
		fail(pf.Page, pf.Err)
	}
	if res.PageCount == 0 {
		res.PageCount = out.PageCount
	}
	res.Confidence = out.Confidence

	e.cacheStore(ctx, hash, cache.Entry{
		Text:       out.Text,
		Confidence: out.Confidence,
		PageCount:  out.PageCount,
		Timestamp:  time.Now().UTC(),
	})
	return out.Text
}

func (e *Extractor) cacheLookup(ctx context.Context, hash string) *cache.Entry {
	if entry, err := e.deps.MemCache.Get(ctx, hash); err == nil && entry != nil {
		return entry
	}
	if e.deps.Durable == nil {
		return nil
	}
	entry, err := e.deps.Durable.Get(ctx, hash)
	if err != nil {
		e.logger.Warn("extract.cache.durable_lookup_failed", "content_hash", hash[:12], "error", err)
		return nil
	}
	if entry != nil {
		// promote so the next identical upload skips the round trip
		_ = e.deps.MemCache.Put(ctx, hash, *entry)
	}
	return entry
}

func (e *Extractor) cacheStore(ctx context.Context, hash string, entry cache.Entry) {
	if err := e.deps.MemCache.Put(ctx, hash, entry); err != nil {
		e.logger.Warn("extract.cache.memory_store_failed", "content_hash", hash[:12], "error", err)
	}
	if e.deps.Durable == nil {
		return
	}
	if err := e.deps.Durable.Put(ctx, hash, entry); err != nil {
		e.logger.Warn("extract.cache.durable_store_failed", "content_hash", hash[:12], "error", err)
	}
}

// journal appends a failure to the durable log. Sink errors are swallowed:
// journaling must never affect the returned result.
func (e *Extractor) journal(ctx context.Context, docID, filename string, f DocumentFailure) {
	if e.deps.Failures == nil {
		return
	}
	err := e.deps.Failures.Append(ctx, repository.FailureEvent{
		DocumentID: docID,
		TenantID:   e.cfg.TenantID,
		EventType:  constants.FailureEventOCR,
		Message:    f.Error,
		Details:    map[string]any{"page": f.Page, "filename": filename},
		Timestamp:  f.Timestamp,
	})
	if err != nil {
		e.logger.Warn("extract.failure_log.append_failed", "document_id", docID, "error", err)
	}
}

// seedFromVision turns per-page vision output into dimension candidates:
// schema-validated structured rooms first, then a scan of each page's
// transcript. Vision is the only strategy allowed to seed facts ahead of
// the main merge because its transcription isolates room context reliably.
func seedFromVision(out vision.Output) []dimensions.Extraction {
	var structured, scanned []dimensions.Extraction
	for _, page := range out.Pages {
		for _, room := range page.Rooms {
			length := round2(room.LengthM)
			width := round2(room.WidthM)
			if !plausibleDimension(length) || !plausibleDimension(width) {
				continue
			}
			structured = append(structured, dimensions.Extraction{
				Room:       canonicalRoomName(room.Room),
				LengthM:    length,
				WidthM:     width,
				AreaSqm:    round2(length * width),
				RawText:    fmt.Sprintf("ROOM: %s DIMENSIONS: %g x %g", room.Room, room.LengthM, room.WidthM),
				Confidence: VisionSeedConfidence,
			})
		}
		scanned = append(scanned, dimensions.Scan(dimensions.Normalize(page.Text))...)
	}
	return mergeDimensions(structured, scanned)
}

// mergeDimensions keeps the first extraction per canonical room name across
// the given lists, in order.
func mergeDimensions(lists ...[]dimensions.Extraction) []dimensions.Extraction {
	seen := make(map[string]bool)
	var out []dimensions.Extraction
	for _, list := range lists {
		for _, d := range list {
			if d.Room == "" || seen[d.Room] {
				continue
			}
			seen[d.Room] = true
			out = append(out, d)
		}
	}
	return out
}

func canonicalRoomName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = reSignatureSpace.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

func plausibleDimension(v float64) bool {
	return v >= constants.MinPlausibleDimensionM && v <= constants.MaxPlausibleDimensionM
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// detectFormat sniffs the content bytes first and falls back to the file
// extension for scanner output whose magic bytes mimetype does not know.
func detectFormat(data []byte, filename string) constants.Format {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return constants.PDF
	case mt.Is("image/png"), mt.Is("image/jpeg"):
		return constants.IMAGE
	}
	return constants.MapExtToFormat(filepath.Ext(filename))
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
