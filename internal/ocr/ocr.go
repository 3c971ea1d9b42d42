package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/propdocs/plan-extractor/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // base rasterization DPI, default 150
	UpscaleFactor int    // render multiplier for small fonts, default 2

	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	MaxWorkers int // bounded page concurrency, default 4
}

// PageResult is one page's recognized text with engine confidence (0-100).
type PageResult struct {
	Page       int
	Text       string
	Confidence float64
}

// PageFailure records a page that could not be recognized. Failed pages do
// not stop their siblings.
type PageFailure struct {
	Page int
	Err  error
}

type Result struct {
	Text        string // page texts joined in ascending page order
	PageCount   int
	Confidence  float64 // mean over pages that produced non-empty text
	PageResults []PageResult
	Failures    []PageFailure
}

// Engine rasterizes document pages and runs optical character recognition
// against each one via external poppler/tesseract binaries.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: withDefaults(cfg), runner: execRunner{logger: logger}, logger: logger}
}

func withDefaults(cfg Config) Config {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = constants.DefaultOCRDPI
	}
	if cfg.UpscaleFactor <= 0 {
		cfg.UpscaleFactor = constants.OCRUpscaleFactor
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	return cfg
}

// Recognize runs OCR over the whole document. PDF input is rasterized page
// by page; image input is recognized as a single page. Per-page failures are
// collected, not propagated; only whole-document problems (temp dir,
// rasterizer) return an error.
func (e *Engine) Recognize(ctx context.Context, data []byte, format constants.Format) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "pe-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("ocr.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	in := filepath.Join(tmpDir, "input")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return Result{}, err
	}

	var paths []string
	switch format {
	case constants.IMAGE:
		paths = []string{in}
	case constants.PDF:
		paths, err = e.render(ctx, in, tmpDir, 0)
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("unsupported format: %q", format)
	}

	res := e.recognizePages(ctx, paths)
	e.logger.Info("ocr.ok",
		"pages", res.PageCount,
		"failed_pages", len(res.Failures),
		"confidence", res.Confidence,
		"bytes", len(res.Text),
	)
	return res, nil
}

// render rasterizes up to maxPages pages (0 = all) to PNGs at the configured
// DPI times the upscale factor, returning paths in page order.
func (e *Engine) render(ctx context.Context, pdfPath, dir string, maxPages int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI * e.cfg.UpscaleFactor), "-png"}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, prefix)

	// pdftoppm -r <dpi> -png <in.pdf> <dir/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...); pdftoppm
	// zero-pads the index so a lexical sort preserves page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	return matches, nil
}

// RenderPages rasterizes up to maxPages pages and returns the PNG bytes in
// page order. Used by the vision fallback, which submits images elsewhere.
func (e *Engine) RenderPages(ctx context.Context, data []byte, format constants.Format, maxPages int) ([][]byte, error) {
	if format == constants.IMAGE {
		img := make([]byte, len(data))
		copy(img, data)
		return [][]byte{img}, nil
	}

	tmpDir, err := os.MkdirTemp("", "pe-render-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("ocr.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	in := filepath.Join(tmpDir, "input")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}
	paths, err := e.render(ctx, in, tmpDir, maxPages)
	if err != nil {
		return nil, err
	}
	if maxPages > 0 && len(paths) > maxPages {
		paths = paths[:maxPages]
	}

	pages := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, rerr := os.ReadFile(p)
		if rerr != nil {
			return nil, rerr
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// recognizePages runs tesseract over each rendered page with a bounded
// worker pool, then reassembles outputs in ascending page order. A failed
// page never cancels its in-flight siblings.
func (e *Engine) recognizePages(ctx context.Context, paths []string) Result {
	workers := e.cfg.MaxWorkers
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	pages := make([]PageResult, len(paths))
	errs := make([]error, len(paths))

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			if aerr := sem.Acquire(ctx, 1); aerr != nil {
				errs[idx] = aerr
				return
			}
			defer sem.Release(1)

			txt, conf, perr := e.recognizePage(ctx, path)
			if perr != nil {
				errs[idx] = perr
				return
			}
			pages[idx] = PageResult{Page: idx + 1, Text: txt, Confidence: conf}
		}(i, p)
	}
	wg.Wait()

	res := Result{PageCount: len(paths)}
	var b strings.Builder
	var confSum float64
	var confN int
	for i := range pages {
		if errs[i] != nil {
			res.Failures = append(res.Failures, PageFailure{Page: i + 1, Err: errs[i]})
			continue
		}
		pages[i].Page = i + 1
		res.PageResults = append(res.PageResults, pages[i])
		if strings.TrimSpace(pages[i].Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(pages[i].Text)
		confSum += pages[i].Confidence
		confN++
	}
	res.Text = b.String()
	if confN > 0 {
		res.Confidence = confSum / float64(confN)
	}
	return res
}

func (e *Engine) recognizePage(ctx context.Context, path string) (string, float64, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	txt := reBoxNoise.ReplaceAllString(string(out), "")

	conf, cerr := e.tsvConfidence(ctx, path)
	if cerr != nil {
		// confidence is best-effort; the text still counts
		e.logger.Debug("ocr.tsv_confidence_failed", "path", path, "error", cerr)
		conf = 0
	}
	return txt, conf, nil
}
