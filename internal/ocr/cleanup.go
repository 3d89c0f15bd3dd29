package ocr

import (
	"regexp"
	"strings"
)

var (
	// dashVariants covers en/em dashes, horizontal bars and soft hyphens
	// that OCR engines emit in place of an ASCII hyphen.
	dashVariants = strings.NewReplacer(
		"‐", "-", // hyphen
		"‑", "-", // non-breaking hyphen
		"‒", "-", // figure dash
		"–", "-", // en dash
		"—", "-", // em dash
		"―", "-", // horizontal bar
		"­", "", // soft hyphen
	)

	// hyphenBreakRe matches a word broken across a line end with a hyphen.
	hyphenBreakRe = regexp.MustCompile(`(\pL)-\n\s*(\pL)`)

	// blankRunRe collapses runs of three or more newlines.
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// CleanupText normalizes raw OCR output: unifies dash variants, rejoins
// words hyphenated across line breaks and collapses excess blank lines.
func CleanupText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = dashVariants.Replace(s)
	s = hyphenBreakRe.ReplaceAllString(s, "$1$2")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
