// Package normalize canonicalizes free-text insured identifiers (tax IDs,
// legal names, postal addresses) into forms that can be compared directly.
// Every function is total: malformed input degrades to an empty or partial
// canonical form instead of failing.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Normalizer canonicalizes names and addresses using a fixed Dictionary.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	suffixPattern *regexp.Regexp
	abbreviations map[string]string
}

// Default is the normalizer backed by USDictionary. The package-level
// functions delegate to it.
var Default = NewNormalizer(USDictionary())

// NewNormalizer builds a Normalizer for the given dictionary.
func NewNormalizer(dict Dictionary) *Normalizer {
	quoted := make([]string, 0, len(dict.EntitySuffixes))
	for _, s := range dict.EntitySuffixes {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(s))
	}

	var pattern *regexp.Regexp
	if len(quoted) > 0 {
		// A suffix must be preceded by a space or comma, so a name made up of a
		// single suffix word is never reduced to nothing.
		pattern = regexp.MustCompile(`[\s,]+(?:` + strings.Join(quoted, "|") + `)\.?[\s,.]*$`)
	}

	abbreviations := make(map[string]string, len(dict.StreetAbbreviations))
	for k, v := range dict.StreetAbbreviations {
		abbreviations[strings.ToUpper(k)] = strings.ToUpper(v)
	}

	return &Normalizer{
		suffixPattern: pattern,
		abbreviations: abbreviations,
	}
}

// ID strips every non-digit character, so "12-3456789" and "123456789" compare equal.
func ID(raw string) string {
	return digitsOnly(raw)
}

// Name canonicalizes an insured legal name. See Normalizer.Name.
func Name(raw string) string {
	return Default.Name(raw)
}

// Address canonicalizes a mailing address into one comparable string. See Normalizer.Address.
func Address(street, city, state, postalCode string) string {
	return Default.Address(street, city, state, postalCode)
}

// Name upper-cases the name, removes the trailing legal-entity designator,
// strips punctuation and collapses whitespace.
//
// The designator removed is the outermost trailing run of suffix words
// ("COMPANY LLC" in "Acme Holding Company LLC"); interior words are kept and
// the leading word is never removed.
func (n *Normalizer) Name(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if n.suffixPattern != nil {
		for {
			loc := n.suffixPattern.FindStringIndex(s)
			if loc == nil {
				break
			}
			s = s[:loc[0]]
		}
	}

	return collapseWhitespace(stripPunctuation(s))
}

// Address builds "{street} {city} {state} {zip5}". Street tokens are
// punctuation-stripped and abbreviated; city and state are trimmed and
// upper-cased; the postal code keeps its first five digits.
func (n *Normalizer) Address(street, city, state, postalCode string) string {
	tokens := strings.Fields(strings.ToUpper(street))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = stripPunctuation(tok)
		if tok == "" {
			continue
		}
		if abbr, ok := n.abbreviations[tok]; ok {
			tok = abbr
		}
		out = append(out, tok)
	}

	zip := digitsOnly(postalCode)
	if len(zip) > 5 {
		zip = zip[:5]
	}

	return fmt.Sprintf("%s %s %s %s",
		strings.Join(out, " "),
		strings.ToUpper(strings.TrimSpace(city)),
		strings.ToUpper(strings.TrimSpace(state)),
		zip,
	)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
