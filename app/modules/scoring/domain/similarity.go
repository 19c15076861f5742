// Package scoringdomain holds the pure scoring rules: string similarity, the
// deterministic fallback grade, point arithmetic and the leaderboard.
package scoringdomain

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s, drops every rune that is neither a letter, a digit,
// an underscore nor whitespace, and collapses whitespace runs to one space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity is 1 - editDistance/maxLen over the normalized forms of a and b.
// Equal strings score 1; an empty side scores 0.
func Similarity(a, b string) float64 {
	na, nb := []rune(Normalize(a)), []rune(Normalize(b))
	if string(na) == string(nb) && len(na) > 0 {
		return 1
	}
	if len(na) == 0 || len(nb) == 0 {
		return 0
	}
	longest := max(len(na), len(nb))
	return 1 - float64(levenshtein(na, nb))/float64(longest)
}

// levenshtein keeps two rows of the edit matrix.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
