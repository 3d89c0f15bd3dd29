// Package postprocess filters the raw model-emitted location list down to
// principal filming addresses and cleans up production-company lists.
package postprocess

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the keyword lists driving the location classifier. The lists
// are versioned configuration data so new languages can be added without
// code changes.
type Lexicon struct {
	Version string `yaml:"version" json:"version"`

	// NonPrincipal matches crew-logistics and non-principal-unit markers.
	// A location string containing any of these is rejected outright.
	NonPrincipal []string `yaml:"non_principal" json:"non_principal"`

	// PrincipalHints mark a context window as principal-filming evidence.
	PrincipalHints []string `yaml:"principal_hints" json:"principal_hints"`
}

// DefaultLexicon returns the embedded lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := parseLexicon(defaultLexiconYAML)
	if err != nil {
		// The embedded file is validated by tests; a parse failure here is a
		// build defect.
		panic(err)
	}
	return lex
}

// LoadLexicon reads a lexicon from a YAML file. An empty path returns the
// embedded default.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "postprocess: read lexicon %s", path)
	}
	return parseLexicon(b)
}

func parseLexicon(b []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(b, &lex); err != nil {
		return nil, eris.Wrap(err, "postprocess: parse lexicon")
	}
	if lex.Version == "" {
		return nil, eris.New("postprocess: lexicon missing version")
	}
	if len(lex.NonPrincipal) == 0 {
		return nil, eris.New("postprocess: lexicon has no non_principal entries")
	}
	return &lex, nil
}
