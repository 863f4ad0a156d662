package external

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregraph/caregraph-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// chatServer returns an httptest server that answers every chat-completions
// call with the given content string, counting requests.
func chatServer(t *testing.T, content string, status int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(baseURL string, cache *ResponseCache) *InterpreterClient {
	return NewInterpreterClient(domain.InterpreterConfig{
		BaseURL:   baseURL,
		Model:     "test-model",
		Timeout:   2 * time.Second,
		RateLimit: 100,
	}, cache, testLogger())
}

func TestInterpreterClient_ScoreConditions(t *testing.T) {
	var calls atomic.Int64
	server := chatServer(t, `{"scores": {"migraine": 0.8, "anxiety": 1.7, "invented": 0.9, "gerd": -0.2}}`,
		http.StatusOK, &calls)
	defer server.Close()

	client := newTestClient(server.URL, nil)
	scores, err := client.ScoreConditions(context.Background(), "recurring headaches",
		[]string{"migraine", "anxiety", "gerd"})
	require.NoError(t, err)

	// Clamped into [0,1]; conditions outside the candidate list are dropped.
	assert.InDelta(t, 0.8, scores["migraine"], 1e-9)
	assert.InDelta(t, 1.0, scores["anxiety"], 1e-9)
	assert.InDelta(t, 0.0, scores["gerd"], 1e-9)
	assert.NotContains(t, scores, "invented")
}

func TestInterpreterClient_GenerateProgressions(t *testing.T) {
	var calls atomic.Int64
	server := chatServer(t,
		`{"progressions": [
			{"name": "Advanced Fibrosis", "probability": 0.3, "annual_cost": 15000},
			{"name": "", "probability": 0.2, "annual_cost": 1000},
			{"name": "Remission", "probability": 2.0, "annual_cost": -50}
		]}`, http.StatusOK, &calls)
	defer server.Close()

	client := newTestClient(server.URL, nil)
	steps, err := client.GenerateProgressions(context.Background(), "rare metabolic disorder", 45, "M")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "Advanced Fibrosis", steps[0].Name)
	assert.InDelta(t, 0.3, steps[0].Probability, 1e-9)
	assert.InDelta(t, 15000.0, steps[0].AnnualCost, 1e-9)

	// Out-of-range values are clamped, not rejected.
	assert.InDelta(t, 1.0, steps[1].Probability, 1e-9)
	assert.Zero(t, steps[1].AnnualCost)
}

func TestInterpreterClient_MalformedResponse(t *testing.T) {
	var calls atomic.Int64
	server := chatServer(t, "this is not json", http.StatusOK, &calls)
	defer server.Close()

	client := newTestClient(server.URL, nil)

	_, err := client.ScoreConditions(context.Background(), "text", []string{"migraine"})
	assert.Error(t, err)

	_, err = client.GenerateProgressions(context.Background(), "condition", 45, "M")
	assert.Error(t, err)
}

func TestInterpreterClient_ServerError(t *testing.T) {
	var calls atomic.Int64
	server := chatServer(t, "", http.StatusInternalServerError, &calls)
	defer server.Close()

	client := NewInterpreterClient(domain.InterpreterConfig{
		BaseURL:    server.URL,
		Model:      "test-model",
		Timeout:    2 * time.Second,
		RateLimit:  100,
		RetryCount: 2,
	}, nil, testLogger())

	_, err := client.ScoreConditions(context.Background(), "text", []string{"migraine"})
	require.Error(t, err)

	// Initial attempt plus two retries.
	assert.Equal(t, int64(3), calls.Load())
}

func TestInterpreterClient_CachesResponses(t *testing.T) {
	var calls atomic.Int64
	server := chatServer(t, `{"progressions": [{"name": "Flare", "probability": 0.1, "annual_cost": 500}]}`,
		http.StatusOK, &calls)
	defer server.Close()

	cache, err := NewResponseCache(domain.CacheConfig{LRUSize: 16, LRUTTL: time.Minute}, testLogger())
	require.NoError(t, err)
	defer cache.Close()

	client := newTestClient(server.URL, cache)

	first, err := client.GenerateProgressions(context.Background(), "gastritis flare", 50, "F")
	require.NoError(t, err)
	second, err := client.GenerateProgressions(context.Background(), "gastritis flare", 50, "F")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
}

func TestResponseCache_InProcessOnly(t *testing.T) {
	cache, err := NewResponseCache(domain.CacheConfig{}, testLogger())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, found := cache.Get(ctx, "missing")
	assert.False(t, found)

	cache.Set(ctx, "key", "value")
	got, found := cache.Get(ctx, "key")
	require.True(t, found)
	assert.Equal(t, "value", got)
}
