package scoringdomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackScore(t *testing.T) {
	tests := []struct {
		name          string
		title, artist string
		wantScore     float64
		wantReasoning string
	}{
		{name: "exact title and artist", title: "Echoes of Time", artist: "MVP Artist", wantScore: 10, wantReasoning: "Fallback scoring: title 100% match"},
		{name: "typo in title", title: "echos of time", artist: "", wantScore: 8.5, wantReasoning: "Fallback scoring: title 93% match"},
		{name: "typo with artist credit", title: "echos of time", artist: "mvp artist", wantScore: 9.5},
		{name: "unrelated", title: "Binary Lullaby", artist: "", wantScore: 0},
		{name: "artist only", title: "", artist: "MVP Artist", wantScore: 1, wantReasoning: "Fallback scoring: title 0% match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackScore("Echoes of Time", "MVP Artist", tt.title, tt.artist)
			assert.Equal(t, tt.wantScore, got.Score)
			if tt.wantReasoning != "" {
				assert.Equal(t, tt.wantReasoning, got.Reasoning)
			}
		})
	}
}

func TestFallbackScoreIsDeterministic(t *testing.T) {
	first := FallbackScore("Glass Horizon", "MVP Artist", "glas horizon", "mvp")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, FallbackScore("Glass Horizon", "MVP Artist", "glas horizon", "mvp"))
	}
}

func TestFallbackScoreCapsAtMax(t *testing.T) {
	assert.Equal(t, MaxScore, FallbackScore("Neon Pulse", "MVP Artist", "neon pulse", "MVP Artist").Score)
}

func TestValidScore(t *testing.T) {
	assert.True(t, ValidScore(0))
	assert.True(t, ValidScore(10))
	assert.False(t, ValidScore(-0.1))
	assert.False(t, ValidScore(10.5))
}
