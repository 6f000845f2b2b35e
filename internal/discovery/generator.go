// Package discovery generates illustrative travel suggestions with an
// OpenAI-compatible chat completions endpoint.
package discovery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/pkg/cache"
)

const (
	maxQueryLen   = 200
	maxContextLen = 100
)

// Destination is a suggested place to visit.
type Destination struct {
	Name        string `json:"name"`
	Region      string `json:"region,omitempty"`
	Description string `json:"description"`
	BestTime    string `json:"best_time,omitempty"`
}

// Stay is a suggested place to stay.
type Stay struct {
	Name       string `json:"name"`
	Location   string `json:"location"`
	PriceRange string `json:"price_range,omitempty"`
}

// Transit is a suggested flight or train.
type Transit struct {
	Name       string `json:"name"`
	From       string `json:"from"`
	To         string `json:"to"`
	Duration   string `json:"duration,omitempty"`
	PriceRange string `json:"price_range,omitempty"`
}

// Suggestions is the structured generator output.
type Suggestions struct {
	Destinations []Destination `json:"destinations"`
	Stays        []Stay        `json:"stays"`
	Flights      []Transit     `json:"flights"`
	Trains       []Transit     `json:"trains"`
}

func (s *Suggestions) fillEmpty() {
	if s.Destinations == nil {
		s.Destinations = []Destination{}
	}
	if s.Stays == nil {
		s.Stays = []Stay{}
	}
	if s.Flights == nil {
		s.Flights = []Transit{}
	}
	if s.Trains == nil {
		s.Trains = []Transit{}
	}
}

// Request asks for suggestions about query, seen from pageContext (e.g. "trips", "stays").
type Request struct {
	Query       string `json:"query"`
	PageContext string `json:"page_context"`
}

func (r Request) normalize() (Request, error) {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	r.PageContext = strings.ToLower(strings.TrimSpace(r.PageContext))
	if r.Query == "" {
		return r, apperr.Validation("query is required")
	}
	if len([]rune(r.Query)) > maxQueryLen {
		return r, apperr.Validation("query must be at most 200 characters")
	}
	if len(r.PageContext) > maxContextLen {
		return r, apperr.Validation("page_context is too long")
	}
	if r.PageContext == "" {
		r.PageContext = "general"
	}
	return r, nil
}

// cacheKey hashes the normalized request so keys stay short and uniform.
func (r Request) cacheKey() string {
	sum := sha256.Sum256([]byte(strings.ToLower(r.Query) + "\x00" + r.PageContext))
	return hex.EncodeToString(sum[:16])
}

// Config configures the completions endpoint.
type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Generator produces Suggestions, caching by normalized request.
type Generator struct {
	cfg    Config
	http   *http.Client
	cache  cache.Cache
	logger *zap.Logger
}

// NewGenerator creates a Generator. A nil httpClient uses one with cfg.Timeout.
func NewGenerator(cfg Config, httpClient *http.Client, c cache.Cache, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1200
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Generator{cfg: cfg, http: httpClient, cache: c, logger: logger}
}

// Generate returns suggestions for req.
func (g *Generator) Generate(ctx context.Context, req Request) (*Suggestions, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	key := req.cacheKey()
	if g.cache != nil {
		cached, ok, err := cache.GetJSON[Suggestions](ctx, g.cache, key)
		if err != nil {
			g.logger.Warn("discovery cache read failed", zap.Error(err))
		}
		if ok {
			return &cached, nil
		}
	}

	out, err := g.complete(ctx, req)
	if err != nil {
		g.logger.Warn("discovery generation failed", zap.String("query", req.Query), zap.Error(err))
		return nil, apperr.Transient("discovery.generate", err)
	}
	if g.cache != nil {
		if err := cache.SetJSON(ctx, g.cache, key, out, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("discovery cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

const systemPrompt = `You suggest travel ideas for solo travelers in India.
Reply with one JSON object with keys "destinations", "stays", "flights" and "trains".
destinations: [{name, region, description, best_time}]
stays: [{name, location, price_range}]
flights and trains: [{name, from, to, duration, price_range}]
Give at most 4 items per key. Use empty arrays when a key does not apply.`

func (g *Generator) complete(ctx context.Context, req Request) (*Suggestions, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Page: %s\nSearch: %s", req.PageContext, req.Query)},
		},
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var wire chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}
	content := stripFence(wire.Choices[0].Message.Content)
	var out Suggestions
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decoding suggestions: %w", err)
	}
	out.fillEmpty()
	return &out, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
