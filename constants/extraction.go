package constants

import "time"

// Method names the strategy whose output became the final text.
type Method string

// Stable values (these exact strings appear in results and logs).
const (
	MethodText   Method = "text"   // native text layer
	MethodOCR    Method = "ocr"    // optical character recognition
	MethodMerged Method = "merged" // deduplicated union of text layer + OCR
	MethodVision Method = "vision" // vision-model transcription
)

// Cascade thresholds. Empirically chosen defaults; override via extract.Config.
const (
	// MinTextLayerChars is the minimum text-layer length below which OCR runs.
	MinTextLayerChars = 50
	// MinCombinedChars is the combined text-layer+OCR length below which the
	// vision fallback always runs.
	MinCombinedChars = 100
	// VisionCrossoverChars is the combined length below which vision runs
	// whenever a vision credential is configured.
	VisionCrossoverChars = 500
	// DefaultMaxVisionPages bounds vision-model cost per document.
	DefaultMaxVisionPages = 3
)

// OCR rendering.
const (
	// OCRUpscaleFactor multiplies the base render DPI to improve recognition
	// of small fonts on drawings.
	OCRUpscaleFactor = 2
	DefaultOCRDPI    = 150
)

// CacheTTL is the lifetime of in-process cache entries. Durable entries do
// not expire.
const CacheTTL = 24 * time.Hour

// Room-dimension plausibility bounds in metres. Pairs outside this range are
// treated as mis-parsed drawing or page numbers and dropped.
const (
	MinPlausibleDimensionM = 1.0
	MaxPlausibleDimensionM = 20.0
)

// MillimetreThreshold: a captured dimension value above this is interpreted
// as millimetres rather than metres. Magnitude heuristic, not a unit label.
const MillimetreThreshold = 100.0

// MaxMillimetreValue bounds the millimetre interpretation. Larger tokens are
// mis-parses (drawing numbers, scales) and are left for the plausibility
// filter to reject.
const MaxMillimetreValue = 10000.0

// FailureEventOCR is the event type journaled for non-fatal extraction failures.
const FailureEventOCR = "ocr_failure"
