package dimensions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reSpaces     = regexp.MustCompile(`[^\S\n]+`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reMMPair     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mm\s*[x×X]\s*(\d+(?:\.\d+)?)\s*mm`)
	reBareMM     = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*mm\b`)
	reMetrePair  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*m\s*[x×X]\s*(\d+(?:\.\d+)?)\s*m\b`)
	reDimPair    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[x×X]\s*(\d+(?:\.\d+)?)`)
)

// Normalize collapses noisy whitespace and rewrites dimension notation so the
// scanner operates on a single convention: decimal metres around a lowercase
// " x ". Millimetre tokens are converted to metres (divide by 1000, two
// decimals). Conservative about line structure: keeps line breaks, collapses
// runs of blank lines into a single blank line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	// Dimension notation, most specific first: mm pairs, bare mm tokens,
	// metre pairs, then any remaining "N x M" variants.
	s = reMMPair.ReplaceAllString(s, "${1}mm x ${2}mm")
	s = reBareMM.ReplaceAllStringFunc(s, millimetresToMetres)
	s = reMetrePair.ReplaceAllString(s, "$1 x $2")
	s = reDimPair.ReplaceAllString(s, "$1 x $2")

	return strings.TrimSpace(s)
}

func millimetresToMetres(token string) string {
	m := reBareMM.FindStringSubmatch(token)
	if m == nil {
		return token
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return token
	}
	return fmt.Sprintf("%.2f", v/1000)
}
