// Package geobias completes ambiguous addresses with a caller-supplied
// city/country bias before geocoding. The bias is never forced onto an
// address that already hints at a different country.
package geobias

import (
	"regexp"
	"strings"

	"github.com/setflow/callsheet-cli/internal/model"
)

// countryISO2 maps country names (German, English, Spanish spellings) to
// their ISO 3166-1 alpha-2 code.
var countryISO2 = map[string]string{
	"austria": "AT", "österreich": "AT", "oesterreich": "AT",
	"germany": "DE", "deutschland": "DE", "alemania": "DE",
	"switzerland": "CH", "schweiz": "CH", "suiza": "CH",
	"spain": "ES", "spanien": "ES", "españa": "ES", "espana": "ES",
	"france": "FR", "frankreich": "FR", "francia": "FR",
	"italy": "IT", "italien": "IT", "italia": "IT",
	"portugal": "PT",
	"netherlands": "NL", "niederlande": "NL", "países bajos": "NL",
	"belgium": "BE", "belgien": "BE", "bélgica": "BE",
	"luxembourg": "LU", "luxemburg": "LU",
	"united kingdom": "GB", "großbritannien": "GB", "reino unido": "GB",
	"ireland": "IE", "irland": "IE", "irlanda": "IE",
	"czech republic": "CZ", "czechia": "CZ", "tschechien": "CZ",
	"slovakia": "SK", "slowakei": "SK",
	"hungary": "HU", "ungarn": "HU", "hungría": "HU",
	"slovenia": "SI", "slowenien": "SI",
	"croatia": "HR", "kroatien": "HR", "croacia": "HR",
	"poland": "PL", "polen": "PL", "polonia": "PL",
	"denmark": "DK", "dänemark": "DK", "dinamarca": "DK",
	"sweden": "SE", "schweden": "SE", "suecia": "SE",
	"norway": "NO", "norwegen": "NO", "noruega": "NO",
	"greece": "GR", "griechenland": "GR", "grecia": "GR",
	"united states": "US", "usa": "US", "estados unidos": "US",
	"canada": "CA", "kanada": "CA", "canadá": "CA",
	"mexico": "MX", "mexiko": "MX", "méxico": "MX",
}

// isoTokenRe matches a standalone two-letter uppercase token, used as a
// secondary country hint (e.g. "Salzburger Str. 12, AT").
var isoTokenRe = regexp.MustCompile(`(^|[\s,])([A-Z]{2})([\s,.]|$)`)

// CountryCode resolves a country name to its ISO-2 code, or "" if unknown.
func CountryCode(country string) string {
	return countryISO2[strings.ToLower(strings.TrimSpace(country))]
}

// hintedCountry returns the ISO-2 code of a country the address itself hints
// at, or "" when no hint is found. Country names take precedence over the
// bare two-letter-token heuristic.
func hintedCountry(addr string) string {
	lower := strings.ToLower(addr)
	for name, code := range countryISO2 {
		if containsToken(lower, name) {
			return code
		}
	}
	if m := isoTokenRe.FindStringSubmatch(addr); m != nil {
		return m[2]
	}
	return ""
}

// containsToken reports whether lower contains name bounded by non-letter
// characters, so "usa" does not match inside "Rustenschacherallee".
func containsToken(lower, name string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], name)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || !isLetter(lower[i-1])
		afterIdx := i + len(name)
		afterOK := afterIdx >= len(lower) || !isLetter(lower[afterIdx])
		if beforeOK && afterOK {
			return true
		}
		idx = i + len(name)
		if idx >= len(lower) {
			return false
		}
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// Prepare applies the bias to each address that lacks a matching city or
// country component. Addresses hinting at a different country pass through
// untouched. The input order is preserved; the result is index-aligned with
// locations.
func Prepare(locations []string, bias model.GeoBias) []string {
	out := make([]string, len(locations))
	for i, loc := range locations {
		out[i] = prepareOne(loc, bias)
	}
	return out
}

func prepareOne(addr string, bias model.GeoBias) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || bias.Empty() {
		return addr
	}

	biasCode := CountryCode(bias.Country)
	if hint := hintedCountry(addr); hint != "" && hint != biasCode {
		return addr
	}

	hasCity := bias.City != "" && hasComponent(addr, bias.City)
	hasCountry := bias.Country != "" && hasComponent(addr, bias.Country)

	var suffix []string
	if bias.City != "" && !hasCity {
		suffix = append(suffix, bias.City)
	}
	if bias.Country != "" && !hasCountry {
		suffix = append(suffix, bias.Country)
	}
	if len(suffix) == 0 {
		return addr
	}
	return addr + ", " + strings.Join(suffix, ", ")
}

// hasComponent reports whether any comma-separated component of addr equals
// value case-insensitively, or contains it as a token (postal-code prefixes
// like "1030 Wien" count as a city match).
func hasComponent(addr, value string) bool {
	lowerVal := strings.ToLower(strings.TrimSpace(value))
	for _, part := range strings.Split(strings.ToLower(addr), ",") {
		part = strings.TrimSpace(part)
		if part == lowerVal || containsToken(part, lowerVal) {
			return true
		}
	}
	return false
}
