package dimensions

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/propdocs/plan-extractor/constants"
)

// Extraction is one canonical room-dimension fact pulled from noisy text.
type Extraction struct {
	Room       string  `json:"room"`
	LengthM    float64 `json:"length_m"`
	WidthM     float64 `json:"width_m"`
	AreaSqm    float64 `json:"area_sqm"`
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
}

// ScanConfidence is the fixed heuristic score assigned to regex-derived
// extractions. Not statistically derived.
const ScanConfidence = 0.7

const rawTextLimit = 100

// roomPattern pairs a recognizer with the canonical snake_case name it maps
// to. The table doubles as the alias table: "lounge" and "sitting room" both
// canonicalize to living_room, the en-suite spelling variants to ensuite.
// Order matters; the first matching pattern wins.
type roomPattern struct {
	re        *regexp.Regexp
	canonical string
}

var roomPatterns = []roomPattern{
	{regexp.MustCompile(`(?i)\b(?:living\s*room|lounge|sitting\s*room)\b`), "living_room"},
	{regexp.MustCompile(`(?i)\bkitchen\s*[/-]?\s*din(?:er|ing)\b`), "kitchen_diner"},
	{regexp.MustCompile(`(?i)\bkitchen\b`), "kitchen"},
	{regexp.MustCompile(`(?i)\bmaster\s*bed(?:room)?\b`), "master_bedroom"},
	// the trailing class keeps a dimension like "Bedroom 3.4 x 2.8" from
	// reading as bedroom 3
	{regexp.MustCompile(`(?i)\bbed(?:room)?\s*([1-4])(?:[^\d.]|$)`), "bedroom_%s"},
	{regexp.MustCompile(`(?i)\bbedroom\b`), "bedroom_1"},
	{regexp.MustCompile(`(?i)\ben[\s-]?suite\b`), "ensuite"},
	{regexp.MustCompile(`(?i)\bbath(?:room)?\b`), "bathroom"},
	{regexp.MustCompile(`(?i)\butility(?:\s*room)?\b`), "utility"},
	{regexp.MustCompile(`(?i)\bgarage\b`), "garage"},
	{regexp.MustCompile(`(?i)\bhall(?:way)?\b`), "hall"},
	{regexp.MustCompile(`(?i)\blanding\b`), "landing"},
	{regexp.MustCompile(`(?i)\bdining\s*room\b`), "dining_room"},
	{regexp.MustCompile(`(?i)\b(?:study|office)\b`), "study"},
	{regexp.MustCompile(`(?i)\b(?:wc|w\.c\.|toilet|cloakroom)\b`), "wc"},
}

// Ordered dimension recognizers over normalized text.
var dimPatterns = []*regexp.Regexp{
	// decimal metres or raw numbers around a canonical " x "
	regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\b`),
	// millimetre pair that escaped normalization
	regexp.MustCompile(`\b(\d{3,5})\s*x\s*(\d{3,5})\b`),
	// spelled-out metres with "x" or "by"
	regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*m(?:et(?:re|er)s?)?\s*(?:x|by)\s*(\d+(?:\.\d+)?)\s*m(?:et(?:re|er)s?)?\b`),
	// two decimal-metre tokens separated only by whitespace
	regexp.MustCompile(`\b(\d{1,2}\.\d{1,2})\s+(\d{1,2}\.\d{1,2})\b`),
}

// Scan walks normalized text line by line with a 3-line context window and
// returns canonical room-dimension extractions. At most one extraction per
// canonical room name; later mentions of the same room are ignored, not
// merged. Pure function over the text plus the pattern tables.
func Scan(text string) []Extraction {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	seen := make(map[string]bool)
	var out []Extraction

	for i := range lines {
		window := contextWindow(lines, i)
		room := matchRoom(window)
		if room == "" || seen[room] {
			continue
		}
		length, width, ok := matchDimensions(window)
		if !ok {
			continue
		}
		seen[room] = true
		out = append(out, Extraction{
			Room:       room,
			LengthM:    length,
			WidthM:     width,
			AreaSqm:    round2(length * width),
			RawText:    truncate(window, rawTextLimit),
			Confidence: ScanConfidence,
		})
	}
	return out
}

// contextWindow joins the previous, current, and next lines.
func contextWindow(lines []string, i int) string {
	lo, hi := i-1, i+2
	if lo < 0 {
		lo = 0
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	return strings.Join(lines[lo:hi], "\n")
}

func matchRoom(window string) string {
	for _, p := range roomPatterns {
		m := p.re.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		if strings.Contains(p.canonical, "%s") && len(m) > 1 {
			return fmt.Sprintf(p.canonical, m[1])
		}
		return p.canonical
	}
	return ""
}

// matchDimensions tries the ordered dimension patterns and converts the first
// match. A matched pair outside the plausible 1-20 m range is discarded
// outright; it is almost always a page or drawing number.
func matchDimensions(window string) (length, width float64, ok bool) {
	for _, re := range dimPatterns {
		m := re.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		a, errA := strconv.ParseFloat(m[1], 64)
		b, errB := strconv.ParseFloat(m[2], 64)
		if errA != nil || errB != nil {
			return 0, 0, false
		}
		length = round2(toMetres(a))
		width = round2(toMetres(b))
		if !plausible(length) || !plausible(width) {
			return 0, 0, false
		}
		return length, width, true
	}
	return 0, 0, false
}

// toMetres interprets a captured number as millimetres when its magnitude
// says it cannot be metres. Tokens beyond MaxMillimetreValue are left alone
// so the plausibility filter rejects the pair.
func toMetres(v float64) float64 {
	if v > constants.MillimetreThreshold && v <= constants.MaxMillimetreValue {
		return v / 1000
	}
	return v
}

func plausible(v float64) bool {
	return v >= constants.MinPlausibleDimensionM && v <= constants.MaxPlausibleDimensionM
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
