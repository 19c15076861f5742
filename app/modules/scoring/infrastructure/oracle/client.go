// Package scoringoracle grades guesses through an OpenAI-compatible chat
// completions endpoint.
package scoringoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	scoringdomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/domain"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	defaultModel     = "gpt-4"
	maxResponseBytes = 1 << 20
	tripAfter        = 3
	systemPrompt     = "You judge a music quiz. Rate how close each guess is to the original song on a 0-10 scale. " +
		"Weigh title accuracy, phonetic similarity, partial matches and artist accuracy. " +
		"Reply with a JSON array only, no markdown."
)

// Client implements scoringservice.Oracle.
type Client struct {
	url     string
	model   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ scoringservice.Oracle = (*Client)(nil)

// NewClient builds a client from cfg. The API key, when set, is sent as a
// bearer token.
func NewClient(cfg config.OracleConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{}
	if cfg.APIKey != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.APIKey,
			TokenType:   "Bearer",
		}))
	}
	httpClient.Timeout = cfg.Timeout

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	c := &Client{url: cfg.URL, model: model, http: httpClient, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "score-oracle",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Score oracle breaker changed state",
				attr.String("breaker", name),
				attr.String("from", from.String()),
				attr.String("to", to.String()),
			)
		},
	})
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

// Assess sends every pair in one request. Entries that cannot be read are
// left out of the result; the caller falls back for those.
func (c *Client) Assess(ctx context.Context, pairs []scoringdomain.Pair) ([]scoringdomain.Verdict, error) {
	if c == nil || c.url == "" {
		return nil, scoringservice.ErrOracleUnavailable
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, pairs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", scoringservice.ErrOracleUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	verdicts, err := parseVerdicts(out.(string))
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Score oracle answered",
		attr.Int("pairs", len(pairs)),
		attr.Int("verdicts", len(verdicts)),
	)
	return verdicts, nil
}

// complete returns the assistant message content.
func (c *Client) complete(ctx context.Context, pairs []scoringdomain.Pair) (string, error) {
	prompt, err := buildPrompt(pairs)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   1000,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", scoringservice.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", scoringservice.ErrOracleUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: status %d", scoringservice.ErrOracleUnavailable, resp.StatusCode)
	}

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if content.Type != gjson.String {
		return "", fmt.Errorf("%w: no message content", scoringservice.ErrOracleMalformed)
	}
	return content.String(), nil
}

func buildPrompt(pairs []scoringdomain.Pair) (string, error) {
	encoded, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to encode guesses: %w", err)
	}
	var b strings.Builder
	b.WriteString("Guesses: ")
	b.Write(encoded)
	b.WriteString("\n\nScale:\n")
	b.WriteString("- 10: title and artist exact\n")
	b.WriteString("- 8-9: minor spelling or wording differences\n")
	b.WriteString("- 6-7: some words match\n")
	b.WriteString("- 3-5: vague similarity\n")
	b.WriteString("- 0-2: wrong\n\n")
	b.WriteString(`Answer with [{"playerId": string, "clueIndex": number, "score": number, "reasoning": string}, ...]`)
	return b.String(), nil
}

// parseVerdicts reads the array out of content, tolerating code fences.
func parseVerdicts(content string) ([]scoringdomain.Verdict, error) {
	content = stripFences(content)
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: invalid JSON", scoringservice.ErrOracleMalformed)
	}
	parsed := gjson.Parse(content)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: expected an array", scoringservice.ErrOracleMalformed)
	}

	var verdicts []scoringdomain.Verdict
	parsed.ForEach(func(_, item gjson.Result) bool {
		playerID, err := uuid.Parse(item.Get("playerId").String())
		if err != nil {
			return true
		}
		clue, score := item.Get("clueIndex"), item.Get("score")
		if clue.Type != gjson.Number || score.Type != gjson.Number {
			return true
		}
		verdicts = append(verdicts, scoringdomain.Verdict{
			PlayerID:  playerID,
			ClueIndex: int(clue.Int()),
			Score:     score.Float(),
			Reasoning: item.Get("reasoning").String(),
		})
		return true
	})
	return verdicts, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
