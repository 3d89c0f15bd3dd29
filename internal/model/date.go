package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are the input formats accepted from model output, tried in
// order. European day-first forms come before US month-first because the
// source documents are predominantly German/Austrian callsheets.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// NormalizeDate canonicalizes a model-emitted date string to YYYY-MM-DD.
// An already-ISO value passes through unmodified.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", eris.New("model: empty date")
	}
	if isoDateRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "", eris.Wrapf(err, "model: invalid ISO date %q", s)
		}
		return s, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", eris.Errorf("model: unparseable date %q", s)
}
