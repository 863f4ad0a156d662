// Package external contains clients for the collaborators outside the
// simulation core: the free-text interpreter service and its response cache.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/caregraph/caregraph-server/internal/domain"
)

const (
	defaultInterpreterTimeout = 15 * time.Second
	defaultRateLimit          = 5 // requests per second
	maxResponseBytes          = 1 << 20
)

// InterpreterClient talks to an OpenAI-compatible chat-completions service to
// score free-text symptom descriptions against condition candidates and to
// generate progression estimates for conditions outside the vocabulary.
// It implements domain.RelevanceScorer and domain.ProgressionGenerator.
//
// Callers must treat every error as a soft failure: the simulation engine
// substitutes neutral scores or empty progressions and carries on.
type InterpreterClient struct {
	config     domain.InterpreterConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *ResponseCache
	logger     *logrus.Logger
}

// NewInterpreterClient creates the client. cache may be nil to disable
// response caching.
func NewInterpreterClient(config domain.InterpreterConfig, cache *ResponseCache, logger *logrus.Logger) *InterpreterClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultInterpreterTimeout
	}
	rps := config.RateLimit
	if rps <= 0 {
		rps = defaultRateLimit
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Interpreter",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &InterpreterClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		breaker:    breaker,
		cache:      cache,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ScoreConditions asks the interpreter how strongly the free text supports
// each candidate condition. Scores outside [0,1] are clamped; conditions the
// interpreter invents are dropped.
func (c *InterpreterClient) ScoreConditions(ctx context.Context, text string, candidates []string) (map[string]float64, error) {
	system := "You score how strongly a patient's free-text description supports each candidate " +
		"medical condition. Respond with a JSON object {\"scores\": {\"<condition>\": <float 0..1>}} " +
		"covering only the listed candidates."
	user := fmt.Sprintf("Description: %s\nCandidates: %s", text, strings.Join(candidates, ", "))

	content, err := c.complete(ctx, "score:"+text+"|"+strings.Join(candidates, ","), system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("malformed relevance response: %w", err)
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		allowed[cand] = struct{}{}
	}
	scores := make(map[string]float64, len(parsed.Scores))
	for condition, score := range parsed.Scores {
		if _, ok := allowed[condition]; !ok {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[condition] = score
	}
	return scores, nil
}

// GenerateProgressions asks the interpreter for plausible progressions of a
// condition the vocabulary cannot map. Steps with empty names are dropped,
// probabilities are clamped into [0,1] and costs floored at zero; tighter
// caps are the engine's job.
func (c *InterpreterClient) GenerateProgressions(ctx context.Context, description string, age int, sex string) ([]domain.ProgressionStep, error) {
	system := "You estimate how a chronic condition may progress over the next few years for a " +
		"patient of the given age and sex. Respond with a JSON object {\"progressions\": " +
		"[{\"name\": string, \"probability\": float 0..1, \"annual_cost\": float USD}]} with at " +
		"most five entries. Return an empty list when unsure."
	user := fmt.Sprintf("Condition: %s\nAge: %d\nSex: %s", description, age, sex)

	cacheKey := fmt.Sprintf("progress:%s|%d|%s", description, age, sex)
	content, err := c.complete(ctx, cacheKey, system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Progressions []domain.ProgressionStep `json:"progressions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("malformed progression response: %w", err)
	}

	steps := make([]domain.ProgressionStep, 0, len(parsed.Progressions))
	for _, step := range parsed.Progressions {
		if strings.TrimSpace(step.Name) == "" {
			continue
		}
		if step.Probability < 0 {
			step.Probability = 0
		}
		if step.Probability > 1 {
			step.Probability = 1
		}
		if step.AnnualCost < 0 {
			step.AnnualCost = 0
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// complete performs one cached, rate-limited, breaker-guarded chat call and
// returns the first choice's content.
func (c *InterpreterClient) complete(ctx context.Context, cacheKey, system, user string) (string, error) {
	if c.cache != nil {
		if cached, found := c.cache.Get(ctx, cacheKey); found {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeWithRetry(ctx, system, user)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return "", fmt.Errorf("interpreter unavailable (circuit breaker open)")
		}
		return "", err
	}

	content := result.(string)
	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, content)
	}
	return content, nil
}

func (c *InterpreterClient) completeWithRetry(ctx context.Context, system, user string) (string, error) {
	attempts := c.config.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		content, err := c.doRequest(ctx, system, user)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.logger.WithError(err).WithField("attempt", attempt+1).Debug("Interpreter request failed")
	}
	return "", lastErr
}

func (c *InterpreterClient) doRequest(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("interpreter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("interpreter returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("interpreter returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
