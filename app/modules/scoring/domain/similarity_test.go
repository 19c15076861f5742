package scoringdomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Echoes of Time", want: "echoes of time"},
		{in: "  Rust & Rain!! ", want: "rust rain"},
		{in: "Low\tTide   Radio", want: "low tide radio"},
		{in: "Café_Nights", want: "café_nights"},
		{in: "?!", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical after normalization", a: "Neon Pulse", b: "neon pulse!", want: 1},
		{name: "empty guess", a: "Neon Pulse", b: "", want: 0},
		{name: "both empty", a: "", b: "  ", want: 0},
		{name: "one edit over fourteen runes", a: "Echoes of Time", b: "echos of time", want: 1 - 1.0/14},
		{name: "nothing in common", a: "abc", b: "xyz", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, levenshtein([]rune("kitten"), []rune("sitting")))
	assert.Equal(t, 0, levenshtein([]rune("same"), []rune("same")))
	assert.Equal(t, 4, levenshtein([]rune(""), []rune("four")))
}
