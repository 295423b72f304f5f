package geocode

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// OneLine joins the non-empty address fields into a single query line.
// Street text is flattened first: multi-line suite blocks and stray
// whitespace from report exports would otherwise leak into the query.
func (a AddressInput) OneLine() string {
	street := strings.NewReplacer("\n", " ", "\r", " ").Replace(a.Street)
	street = strings.Join(strings.Fields(street), " ")

	var parts []string
	for _, p := range []string{street, a.City, a.State, a.ZipCode} {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Variant labels as they appear in the Geocoding_Method output column.
const (
	VariantFull       = "Full"
	VariantSimplified = "Simplified"
)

// Variant is one concrete query text derived from an address.
type Variant struct {
	Label string
	Text  string
}

// defaultPatternSources are the designator clauses stripped when
// simplifying. The geocoding services struggle with suite and floor
// designators in particular.
var defaultPatternSources = []string{
	`,\s*Suite\s+[^,]+`,
	`,\s*Ste\.?\s+[^,]+`,
	`,\s*Floor\s+[^,]+`,
	`,\s*\d+(?:st|nd|rd|th)\s+Floor`,
	`,\s*Room\s+[^,]+`,
	`,\s*#[^,]+`,
	`,\s*Apt\.?\s+[^,]+`,
	`,\s*Unit\s+[^,]+`,
}

var defaultPatterns = mustCompilePatterns(defaultPatternSources)

func mustCompilePatterns(sources []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(sources))
	for i, src := range sources {
		compiled[i] = regexp.MustCompile(`(?i)` + src)
	}
	return compiled
}

// Simplifier strips unit designators from an address to produce the
// simplified query variant.
type Simplifier struct {
	patterns []*regexp.Regexp
}

// NewSimplifier creates a Simplifier. With no arguments the default
// designator patterns are used.
func NewSimplifier(patterns ...*regexp.Regexp) *Simplifier {
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	return &Simplifier{patterns: patterns}
}

// Simplify removes designator clauses and normalizes the remaining
// punctuation and whitespace.
func (s *Simplifier) Simplify(address string) string {
	simplified := address
	for _, p := range s.patterns {
		simplified = p.ReplaceAllString(simplified, "")
	}
	simplified = doubledComma.ReplaceAllString(simplified, ",")
	simplified = strings.Join(strings.Fields(simplified), " ")
	return strings.TrimSpace(simplified)
}

var doubledComma = regexp.MustCompile(`,\s*,`)

// Variants returns the query texts to attempt for addr, most specific
// first. The simplified variant is included only when it differs from the
// full one, so no provider ever sees the same text twice for one record.
func (s *Simplifier) Variants(addr AddressInput) []Variant {
	full := addr.OneLine()
	if full == "" {
		return nil
	}

	variants := []Variant{{Label: VariantFull, Text: full}}
	simplified := s.Simplify(full)
	if simplified != "" && simplified != full {
		variants = append(variants, Variant{Label: VariantSimplified, Text: simplified})
	}
	return variants
}

// patternsFile is the on-disk shape of a simplification pattern override.
type patternsFile struct {
	Patterns []string `yaml:"patterns"`
}

// LoadPatterns reads simplification patterns from a YAML file. Each entry
// is a regular expression compiled case-insensitively.
func LoadPatterns(path string) ([]*regexp.Regexp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: read patterns file %s", path)
	}

	var pf patternsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrapf(err, "geocode: parse patterns file %s", path)
	}
	if len(pf.Patterns) == 0 {
		return nil, eris.Errorf("geocode: patterns file %s contains no patterns", path)
	}

	compiled := make([]*regexp.Regexp, len(pf.Patterns))
	for i, src := range pf.Patterns {
		re, err := regexp.Compile(`(?i)` + src)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: compile pattern %q", src)
		}
		compiled[i] = re
	}
	return compiled, nil
}
