package extract

import (
	"regexp"
	"strings"

	"github.com/propdocs/plan-extractor/constants"
)

// chooseMerged picks the final text and its method from whichever strategy
// outputs exist. Precedence, evaluated in order:
//  1. vision text strictly longer than both others -> vision
//  2. text layer and OCR both substantial -> line-deduplicated union
//  3. OCR non-empty and longer than the text layer -> ocr
//  4. text layer (possibly empty) -> text
func chooseMerged(textLayer, ocrText, visionText string, minChars int) (string, constants.Method) {
	switch {
	case visionText != "" && len(visionText) > len(textLayer) && len(visionText) > len(ocrText):
		return visionText, constants.MethodVision
	case len(textLayer) > minChars && len(ocrText) > minChars:
		return dedupeLines(textLayer, ocrText), constants.MethodMerged
	case ocrText != "" && len(ocrText) > len(textLayer):
		return ocrText, constants.MethodOCR
	default:
		return textLayer, constants.MethodText
	}
}

var reSignatureSpace = regexp.MustCompile(`\s+`)

// dedupeLines unions two texts line-wise. Primary-source lines keep their
// original order; secondary lines are appended only when their
// case-insensitive, whitespace-collapsed signature has not been seen. Near
// duplicates differing in casing or spacing survive once, not twice.
func dedupeLines(primary, secondary string) string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range []string{primary, secondary} {
		for _, line := range strings.Split(src, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sig := strings.ToLower(reSignatureSpace.ReplaceAllString(line, " "))
			if seen[sig] {
				continue
			}
			seen[sig] = true
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
