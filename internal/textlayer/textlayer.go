package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls embedded text from a PDF's native structure. Cheapest
// strategy in the cascade; no rendering involved.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractText parses the document from raw bytes and returns the embedded
// text of all pages merged into one string, plus the total page count.
// The parser panics on some malformed files; that is converted to an error.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (text string, pageCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pageCount = reader.NumPage()

	var b strings.Builder
	for i := 1; i <= pageCount; i++ {
		select {
		case <-ctx.Done():
			return b.String(), pageCount, ctx.Err()
		default:
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			e.logger.Debug("textlayer.page_skipped", "page", i, "error", perr)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}

	e.logger.Debug("textlayer.ok", "pages", pageCount, "bytes", b.Len())
	return b.String(), pageCount, nil
}
