package extract

import (
	"context"
	"time"

	"github.com/propdocs/plan-extractor/constants"
	"github.com/propdocs/plan-extractor/internal/dimensions"
	"github.com/propdocs/plan-extractor/internal/ocr"
	"github.com/propdocs/plan-extractor/internal/repository"
	"github.com/propdocs/plan-extractor/internal/vision"
)

// Options control the cascade for one request.
type Options struct {
	ForceOCR       bool // skip the text-layer attempt
	UseVision      bool // allow vision fallback even when not auto-triggered
	MaxVisionPages int  // hard cap on vision cost; 0 -> constants.DefaultMaxVisionPages
}

// Request is one document-processing call. Data is exclusively owned for the
// duration of the call and not retained. Filename is for logging only.
type Request struct {
	Data       []byte
	Filename   string
	DocumentID string // optional; threaded into the failure journal
	Options    Options
}

// DocumentFailure is a non-fatal per-page error. Page 0 denotes a
// whole-document failure. Failures are data, not exceptions: they never
// abort the cascade.
type DocumentFailure struct {
	Page      int       `json:"page"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the operation's complete output. Text and MergedText are
// identical: the normalized output of whichever strategy ExtractionMethod
// names. Confidence is the mean OCR engine confidence (0-100) and is 0 when
// OCR did not run.
type Result struct {
	Text             string                  `json:"text"`
	MergedText       string                  `json:"merged_text"`
	TextLayerText    string                  `json:"text_layer_text"`
	OCRText          string                  `json:"ocr_text"`
	Confidence       float64                 `json:"confidence"`
	PageCount        int                     `json:"page_count"`
	ExtractionMethod constants.Method        `json:"extraction_method"`
	RoomDimensions   []dimensions.Extraction `json:"room_dimensions"`
	DocumentFailures []DocumentFailure       `json:"document_failures"`
}

// TextLayerExtractor pulls embedded text from a document's native structure.
type TextLayerExtractor interface {
	ExtractText(ctx context.Context, data []byte) (text string, pageCount int, err error)
}

// OCREngine rasterizes a document and recognizes text page by page.
type OCREngine interface {
	Recognize(ctx context.Context, data []byte, format constants.Format) (ocr.Result, error)
}

// VisionReader transcribes a bounded number of rendered pages with a
// vision-capable model.
type VisionReader interface {
	Enabled() bool
	Transcribe(ctx context.Context, data []byte, format constants.Format, maxPages int) (vision.Output, error)
}

// FailureSink journals non-fatal failures durably.
// repository.FailureLogRepository satisfies it; sink errors are swallowed.
type FailureSink interface {
	Append(ctx context.Context, ev repository.FailureEvent) error
}
