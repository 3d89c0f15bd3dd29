// Package jsonx extracts JSON objects from untrusted LLM output. Models
// routinely wrap JSON in markdown fences or surround it with prose, so the
// helpers here strip fences and scan for the first balanced object before
// handing the bytes to encoding/json.
package jsonx

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractObject returns the first balanced top-level JSON object found in s,
// after stripping markdown code fences. String literals and escapes are
// honored during brace matching.
func ExtractObject(s string) (string, error) {
	s = StripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", eris.New("jsonx: no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", eris.New("jsonx: unbalanced JSON object")
}

// StripFences removes a leading/trailing markdown code fence (``` or
// ```json) if present, returning the inner text.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "JSON" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// UnmarshalLenient extracts the first JSON object from s and unmarshals it
// into v.
func UnmarshalLenient(s string, v any) error {
	obj, err := ExtractObject(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return eris.Wrap(err, "jsonx: unmarshal")
	}
	return nil
}
