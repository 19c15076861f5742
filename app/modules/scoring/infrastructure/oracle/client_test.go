package scoringoracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	scoringdomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/domain"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	require.NoError(t, err)
	return body
}

func newTestClient(url string) *Client {
	return NewClient(config.OracleConfig{URL: url, APIKey: "sk-test", Timeout: 2 * time.Second}, testutils.DiscardLogger())
}

func TestAssess(t *testing.T) {
	player := uuid.New()
	pairs := []scoringdomain.Pair{
		{PlayerID: player, ClueIndex: 0, OriginalTitle: "Echoes of Time", GuessTitle: "echos of time"},
		{PlayerID: player, ClueIndex: 1, OriginalTitle: "Neon Pulse", GuessTitle: "neon"},
	}

	tests := []struct {
		name    string
		status  int
		content string
		wantErr error
		want    []scoringdomain.Verdict
	}{
		{
			name:    "plain array",
			status:  http.StatusOK,
			content: fmt.Sprintf(`[{"playerId":"%s","clueIndex":0,"score":8.5,"reasoning":"typo"},{"playerId":"%s","clueIndex":1,"score":6}]`, player, player),
			want: []scoringdomain.Verdict{
				{PlayerID: player, ClueIndex: 0, Score: 8.5, Reasoning: "typo"},
				{PlayerID: player, ClueIndex: 1, Score: 6},
			},
		},
		{
			name:    "fenced array with a bad entry",
			status:  http.StatusOK,
			content: fmt.Sprintf("```json\n[{\"playerId\":\"%s\",\"clueIndex\":0,\"score\":9},{\"playerId\":\"nobody\",\"clueIndex\":1,\"score\":2}]\n```", player),
			want:    []scoringdomain.Verdict{{PlayerID: player, ClueIndex: 0, Score: 9}},
		},
		{
			name:    "prose instead of JSON",
			status:  http.StatusOK,
			content: "I think they did great",
			wantErr: scoringservice.ErrOracleMalformed,
		},
		{
			name:    "object instead of array",
			status:  http.StatusOK,
			content: `{"score": 3}`,
			wantErr: scoringservice.ErrOracleMalformed,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			wantErr: scoringservice.ErrOracleUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				var req chatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, defaultModel, req.Model)
				assert.Len(t, req.Messages, 2)
				w.WriteHeader(tt.status)
				_, _ = w.Write(completion(t, tt.content))
			}))
			defer srv.Close()

			got, err := newTestClient(srv.URL).Assess(t.Context(), pairs)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssessWithoutURL(t *testing.T) {
	_, err := NewClient(config.OracleConfig{}, nil).Assess(t.Context(), []scoringdomain.Pair{{PlayerID: uuid.New()}})
	assert.True(t, errors.Is(err, scoringservice.ErrOracleUnavailable))
}

func TestAssessOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pairs := []scoringdomain.Pair{{PlayerID: uuid.New()}}
	for i := 0; i < tripAfter+2; i++ {
		_, err := c.Assess(t.Context(), pairs)
		assert.True(t, errors.Is(err, scoringservice.ErrOracleUnavailable))
	}
	assert.Equal(t, int32(tripAfter), hits.Load())
}
