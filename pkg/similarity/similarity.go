// Package similarity scores how alike two normalized strings are.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Scorer computes a normalized Levenshtein similarity in [0,1].
// The zero value is ready to use and places no bound on input length.
type Scorer struct {
	// MaxRunes truncates each input to this many runes before the distance is
	// computed. Zero means no bound.
	MaxRunes int
}

var defaultScorer = Scorer{}

// Score returns the similarity of a and b using an unbounded Scorer.
func Score(a, b string) float64 {
	return defaultScorer.Score(a, b)
}

// Score returns 1.0 for a case-insensitive exact match (including two empty
// strings), otherwise 1 - distance/max(len(a), len(b)) measured in runes.
func (s Scorer) Score(a, b string) float64 {
	if strings.EqualFold(a, b) {
		return 1.0
	}

	a = s.bound(strings.ToUpper(a))
	b = s.bound(strings.ToUpper(b))

	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func (s Scorer) bound(v string) string {
	if s.MaxRunes <= 0 || utf8.RuneCountInString(v) <= s.MaxRunes {
		return v
	}
	runes := []rune(v)
	return string(runes[:s.MaxRunes])
}
