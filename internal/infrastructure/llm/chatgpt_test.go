package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/config"
)

func newServer(t *testing.T, calls *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)

		if status != http.StatusOK {
			http.Error(w, "quota exceeded", status)
			return
		}
		prompt := body.Messages[len(body.Messages)-1].Content
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "  echo: " + prompt + "\n"}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Endpoint:  endpoint,
		Model:     "test-model",
		APIKey:    "secret",
		CacheTTL:  time.Minute,
		CacheSize: 8,
	}
}

func TestQueryReturnsTrimmedAnswerAndCaches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newServer(t, &calls, http.StatusOK)
	client := NewChatGPTClient(testConfig(srv.URL), nil, nil)

	answer, err := client.Query(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", answer)

	again, err := client.Query(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, answer, again)
	assert.Equal(t, int32(1), calls.Load())

	_, err = client.Query(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQuerySurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newServer(t, &calls, http.StatusTooManyRequests)
	client := NewChatGPTClient(testConfig(srv.URL), nil, nil)

	_, err := client.Query(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = client.Query(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "errors are not cached")
}

func TestQueryRequiresConfiguration(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(config.LLMConfig{Endpoint: "http://localhost"}, nil, nil)
	_, err := client.Query(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrMisconfigured)
}
