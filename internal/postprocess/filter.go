package postprocess

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

const (
	// minLocationLen is the minimum trimmed length for a usable address.
	minLocationLen = 3

	// maxOccurrences bounds how many mentions of a location are inspected in
	// the source text.
	maxOccurrences = 10

	// contextRadius is the half-width of the context window around each
	// mention, in bytes of the lowercased source.
	contextRadius = 160
)

// evidence is the classification of one context window.
type evidence int

const (
	evidenceUnknown evidence = iota
	evidencePrincipal
	evidenceNon
)

var foldCaser = cases.Fold()

// foldKey returns the case-folded dedupe key for s.
func foldKey(s string) string {
	return foldCaser.String(strings.TrimSpace(s))
}

// Filter retains only principal-filming locations from the model's raw
// location list. sourceText, when non-empty, enables the second-stage
// context-window check; classification is recall-biased, so a location is
// dropped on context evidence only when every inspected mention reads as
// non-principal. The result is deduplicated case-insensitively with
// first-seen order preserved and no upper bound on count.
func (lex *Lexicon) Filter(locations []string, sourceText string) []string {
	lowerSource := strings.ToLower(sourceText)

	kept := make([]string, 0, len(locations))
	for _, loc := range locations {
		trimmed := strings.TrimSpace(loc)
		if len([]rune(trimmed)) < minLocationLen {
			continue
		}
		if kw := lex.matchNonPrincipal(trimmed); kw != "" {
			zap.L().Debug("postprocess: dropped logistics location",
				zap.String("location", trimmed),
				zap.String("keyword", kw),
			)
			continue
		}
		if lowerSource != "" && lex.onlyNonPrincipalContext(trimmed, lowerSource) {
			zap.L().Debug("postprocess: dropped by context evidence",
				zap.String("location", trimmed),
			)
			continue
		}
		kept = append(kept, trimmed)
	}

	return Dedupe(kept)
}

// matchNonPrincipal returns the first non-principal keyword contained in s,
// or "" if none matches.
func (lex *Lexicon) matchNonPrincipal(s string) string {
	lower := strings.ToLower(s)
	for _, kw := range lex.NonPrincipal {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// onlyNonPrincipalContext reports whether every inspected mention of loc in
// lowerSource classifies as non-principal. Any principal or unknown window
// keeps the location.
func (lex *Lexicon) onlyNonPrincipalContext(loc, lowerSource string) bool {
	needle := strings.ToLower(loc)

	sawNon := false
	offset := 0
	for n := 0; n < maxOccurrences; n++ {
		idx := strings.Index(lowerSource[offset:], needle)
		if idx < 0 {
			break
		}
		idx += offset

		switch lex.classifyWindow(window(lowerSource, idx, len(needle))) {
		case evidencePrincipal, evidenceUnknown:
			return false
		case evidenceNon:
			sawNon = true
		}

		offset = idx + len(needle)
		if offset >= len(lowerSource) {
			break
		}
	}

	return sawNon
}

// classifyWindow labels one context window. A window with a principal hint
// and no non-principal keyword is principal; the inverse is non; anything
// else is unknown.
func (lex *Lexicon) classifyWindow(win string) evidence {
	hasHint := false
	for _, kw := range lex.PrincipalHints {
		if strings.Contains(win, kw) {
			hasHint = true
			break
		}
	}
	hasNon := false
	for _, kw := range lex.NonPrincipal {
		if strings.Contains(win, kw) {
			hasNon = true
			break
		}
	}

	switch {
	case hasHint && !hasNon:
		return evidencePrincipal
	case hasNon && !hasHint:
		return evidenceNon
	default:
		return evidenceUnknown
	}
}

func window(s string, idx, needleLen int) string {
	lo := idx - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := idx + needleLen + contextRadius
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}

// Dedupe removes case-insensitive duplicates preserving first-seen order.
// Running it on an already-deduplicated list is a no-op.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		key := foldKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// CleanCompanies trims production-company names, drops blanks and
// deduplicates case-insensitively, preserving first-seen order.
func CleanCompanies(companies []string) []string {
	trimmed := make([]string, 0, len(companies))
	for _, c := range companies {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		trimmed = append(trimmed, c)
	}
	return Dedupe(trimmed)
}
