package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

// tsvConfidence runs tesseract in TSV mode and returns the mean word
// confidence on the engine's 0-100 scale.
func (e *Engine) tsvConfidence(ctx context.Context, path string) (float64, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w: %s", err, truncate(string(errb), 512))
	}

	// conf is column 11 of 12 (the last is the word itself); "-1" marks
	// non-word rows
	lines := strings.Split(string(out), "\n")
	var sum float64
	var n int
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, perr := strconv.ParseFloat(confStr, 64); perr == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
