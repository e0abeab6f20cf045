package llm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/config"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
)

// ErrMisconfigured is returned when the client lacks an endpoint, model or key.
var ErrMisconfigured = errors.New("chatgpt client misconfigured")

// ChatGPTClient implements ports.Querier backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	limiter      *ratelimit.Limiter
	cache        *expirable.LRU[string, string]
	logger       *slog.Logger
}

var _ ports.Querier = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration. limiter may be nil.
func NewChatGPTClient(cfg config.LLMConfig, limiter *ratelimit.Limiter, logger *slog.Logger) *ChatGPTClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var cache *expirable.LRU[string, string]
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}

	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
		cache:        cache,
		logger:       logger.With("component", "llm.chatgpt"),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Query sends prompt as a user message and returns the first choice.
func (c *ChatGPTClient) Query(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", ErrMisconfigured
	}

	key := cacheKey(c.model, prompt)
	if c.cache != nil {
		if answer, ok := c.cache.Get(key); ok {
			metrics.RecordLLM("cached", 0)
			return answer, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.WaitIfNeeded(ctx, ratelimit.ServiceLLM); err != nil {
			return "", fmt.Errorf("wait for llm slot: %w", err)
		}
	}

	started := time.Now()
	answer, err := c.complete(ctx, prompt)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		metrics.RecordLLM("error", elapsed)
		c.logger.WarnContext(ctx, "llm query failed", "error", err)
		return "", err
	}
	metrics.RecordLLM("ok", elapsed)

	if c.cache != nil && answer != "" {
		c.cache.Add(key, answer)
	}
	return answer, nil
}

func (c *ChatGPTClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chatgpt response has no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a careful academic research assistant."
	}
	return prompt
}
