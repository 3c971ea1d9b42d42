package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/propdocs/plan-extractor/internal/common"
	"github.com/propdocs/plan-extractor/internal/export"
	"github.com/propdocs/plan-extractor/internal/extract"
	"github.com/propdocs/plan-extractor/internal/ocr"
	repo "github.com/propdocs/plan-extractor/internal/repository"
	"github.com/propdocs/plan-extractor/internal/textlayer"
	"github.com/propdocs/plan-extractor/internal/vision"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	forceOCR := flag.Bool("force-ocr", false, "skip the text-layer attempt")
	useVision := flag.Bool("vision", false, "request the vision fallback even when not auto-triggered")
	docID := flag.String("doc-id", "", "document id threaded into the failure journal")
	xlsxOut := flag.String("xlsx", "", "write detected room dimensions to this .xlsx path")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "extract [flags] <file.pdf|png|jpg>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("reading input file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
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

	start := time.Now()
	res, err := x.Extract(ctx, extract.Request{
		Data:       data,
		Filename:   filepath.Base(path),
		DocumentID: *docID,
		Options: extract.Options{
			ForceOCR:  *forceOCR,
			UseVision: *useVision,
		},
	})
	dur := time.Since(start)
	if err != nil {
		logger.Error("extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("extraction OK",
		"method", res.ExtractionMethod,
		"pages", res.PageCount,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"rooms", len(res.RoomDimensions),
		"failures", len(res.DocumentFailures),
		"duration_ms", dur.Milliseconds(),
	)

	if *xlsxOut != "" {
		svc := export.NewService(logger)
		buf, err := svc.RoomDimensionsXLSX(filepath.Base(path), res)
		if err != nil {
			logger.Error("xlsx export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, buf, 0o644); err != nil {
			logger.Error("writing xlsx", "path", *xlsxOut, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx written", "path", *xlsxOut)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encoding result", "error", err)
		os.Exit(1)
	}
}
