package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/propdocs/plan-extractor/internal/common"
	"github.com/propdocs/plan-extractor/internal/export"
	"github.com/propdocs/plan-extractor/internal/extract"
	"github.com/propdocs/plan-extractor/internal/ocr"
	repo "github.com/propdocs/plan-extractor/internal/repository"
	"github.com/propdocs/plan-extractor/internal/textlayer"
	"github.com/propdocs/plan-extractor/internal/vision"
	"github.com/propdocs/plan-extractor/internal/watch"
)

type fileSummary struct {
	Path    string         `json:"path"`
	Result  extract.Result `json:"result"`
	Elapsed int64          `json:"elapsed_ms"`
}

func main() {
	var (
		dir       = flag.String("dir", "", "directory to process plan documents from (required)")
		out       = flag.String("out", "", "directory for per-document XLSX review packs (optional)")
		watchMode = flag.Bool("watch", false, "keep watching the directory for new documents")
		forceOCR  = flag.Bool("force-ocr", false, "skip the text-layer attempt")
		useVision = flag.Bool("vision", false, "request the vision fallback even when not auto-triggered")
		workers   = flag.Int("workers", 2, "concurrent documents")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" {
		logger.Error("usage", "cmd", "extract-batch --dir <plans-dir> [--out <xlsx-dir>] [--watch]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = common.WithRequestID(ctx, uuid.New().String())

	engine := ocr.NewEngine(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		TessdataDir:   cfg.OCR.TessdataDir,
		MaxWorkers:    cfg.OCR.MaxWorkers,
	}, logger)

	deps := extract.Deps{
		TextLayer: textlayer.New(logger),
		OCR:       engine,
	}
	if cfg.Vision.APIKey != "" {
		deps.Vision = vision.NewClient(vision.Config{
			BaseURL:           cfg.Vision.BaseURL,
			APIKey:            cfg.Vision.APIKey,
			Model:             cfg.Vision.Model,
			Timeout:           cfg.Vision.Timeout,
			RequestsPerSecond: cfg.Vision.RequestsPerSecond,
		}, engine, logger)
	}
	if cfg.Database.DSN != "" {
		db, err := repo.Open(ctx, repo.Config{
			DSN:         cfg.Database.DSN,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("open durable cache", "error", err)
			os.Exit(1)
		}
		defer repo.Close(db, logger)
		deps.Durable = repo.NewExtractionCache(db, logger)
		deps.Failures = repo.NewFailureLogRepository(db, logger)
	}

	x := extract.New(extract.Config{
		MaxVisionPages: cfg.Extract.MaxVisionPages,
		TenantID:       cfg.Extract.TenantID,
	}, deps, logger)
	exporter := export.NewService(logger)
	opts := extract.Options{ForceOCR: *forceOCR, UseVision: *useVision}

	var outMu sync.Mutex
	enc := json.NewEncoder(os.Stdout)

	processOne := func(ctx context.Context, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("reading document", "path", path, "error", err)
			return nil // keep the batch going
		}
		start := time.Now()
		res, err := x.Extract(ctx, extract.Request{
			Data:     data,
			Filename: filepath.Base(path),
			Options:  opts,
		})
		if err != nil {
			logger.Error("extraction failed", "path", path, "error", err)
			return nil
		}
		if *out != "" {
			buf, xerr := exporter.RoomDimensionsXLSX(filepath.Base(path), res)
			if xerr != nil {
				logger.Error("xlsx export failed", "path", path, "error", xerr)
			} else {
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".xlsx"
				if werr := os.WriteFile(filepath.Join(*out, name), buf, 0o644); werr != nil {
					logger.Error("writing xlsx", "path", name, "error", werr)
				}
			}
		}
		outMu.Lock()
		defer outMu.Unlock()
		return enc.Encode(fileSummary{Path: path, Result: res, Elapsed: time.Since(start).Milliseconds()})
	}

	if *out != "" {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			logger.Error("creating output directory", "dir", *out, "error", err)
			os.Exit(1)
		}
	}

	paths, stats, err := watch.ScanDirectory(*dir, nil, true)
	if err != nil {
		logger.Error("scanning directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("batch.scan",
		"dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, p := range paths {
		g.Go(func() error { return processOne(gctx, p) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	if !*watchMode {
		return
	}

	evCh, errCh, err := watch.Start(ctx, watch.Config{
		Roots:    []string{*dir},
		Debounce: 500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("starting watcher", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("batch.watching", "dir", *dir)

	for {
		select {
		case <-ctx.Done():
			return
		case werr, ok := <-errCh:
			if ok && werr != nil {
				logger.Warn("watch error", "error", werr)
			}
		case p, ok := <-evCh:
			if !ok {
				return
			}
			if err := processOne(ctx, p); err != nil {
				logger.Error("processing watched document", "path", p, "error", err)
			}
		}
	}
}
