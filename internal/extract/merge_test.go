package extract

import (
	"strings"
	"testing"

	"github.com/propdocs/plan-extractor/constants"
	"github.com/stretchr/testify/assert"
)

func TestChooseMerged_VisionWinsWhenStrictlyLongest(t *testing.T) {
	vision := strings.Repeat("v", 200)
	text, method := chooseMerged(strings.Repeat("t", 150), strings.Repeat("o", 150), vision, 50)
	assert.Equal(t, vision, text)
	assert.Equal(t, constants.MethodVision, method)
}

func TestChooseMerged_VisionTieIsNotLongest(t *testing.T) {
	textLayer := strings.Repeat("t", 200)
	vision := strings.Repeat("v", 200)
	_, method := chooseMerged(textLayer, "", vision, 50)
	assert.Equal(t, constants.MethodText, method)
}

func TestChooseMerged_MergesSubstantialSources(t *testing.T) {
	textLayer := strings.Repeat("a\n", 60)
	ocr := strings.Repeat("b\n", 60)
	merged, method := chooseMerged(textLayer, ocr, "", 50)
	assert.Equal(t, constants.MethodMerged, method)
	assert.Contains(t, merged, "a")
	assert.Contains(t, merged, "b")
}

func TestChooseMerged_OCRWinsOverShortTextLayer(t *testing.T) {
	ocr := strings.Repeat("o", 80)
	text, method := chooseMerged("stub", ocr, "", 50)
	assert.Equal(t, ocr, text)
	assert.Equal(t, constants.MethodOCR, method)
}

func TestChooseMerged_FallsBackToTextLayer(t *testing.T) {
	text, method := chooseMerged("short scan", "", "", 50)
	assert.Equal(t, "short scan", text)
	assert.Equal(t, constants.MethodText, method)

	text, method = chooseMerged("", "", "", 50)
	assert.Equal(t, "", text)
	assert.Equal(t, constants.MethodText, method)
}

func TestDedupeLines(t *testing.T) {
	primary := "Hall\nKitchen"
	secondary := "HALL\nKitchen\nUtility"
	got := dedupeLines(primary, secondary)
	assert.Equal(t, "Hall\nKitchen\nUtility", got)
}

func TestDedupeLines_WhitespaceSignature(t *testing.T) {
	got := dedupeLines("Living  Room 4.8 x 3.6", "living room 4.8 x 3.6\nGarage")
	assert.Equal(t, "Living  Room 4.8 x 3.6\nGarage", got)
}

func TestDedupeLines_SkipsBlankLines(t *testing.T) {
	got := dedupeLines("Hall\n\n\nKitchen", "\n\nHall\n")
	assert.Equal(t, "Hall\nKitchen", got)
}
