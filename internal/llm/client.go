// Package llm issues structured-output requests to an external
// language-model endpoint and classifies its failures so the caller
// can apply a per-kind retry policy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"talentworth/internal/config"
	"talentworth/internal/deident"
	"talentworth/internal/domain"
)

const (
	// DefaultEndpoint is the OpenAI chat completions endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is the model to use.
	DefaultModel = "gpt-4.1-mini"
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
)

// Client is a stateless structured-output model client. Every call is
// independent; no session is held across invocations.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient builds a client from model configuration.
func NewClient(cfg config.Model, apiKey string) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Name
	if model == "" {
		model = DefaultModel
	}
	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	return &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		// Transport timeout is not set here; each attempt carries its
		// own context deadline so timeouts classify as TimeoutError.
		httpClient: &http.Client{},
	}
}

// Timeout returns the per-attempt deadline.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Analyze sends one structured-output request built from the validated
// input. Achievements are de-identified before the payload leaves the
// process. The attempt is bounded by the client's timeout; failures
// come back as *TimeoutError, *ParseError or *UpstreamError.
func (c *Client) Analyze(ctx context.Context, input domain.AnalysisInput) (Output, error) {
	sanitized := input
	if sanitized.Achievements != "" {
		sanitized.Achievements = deident.Text(sanitized.Achievements)
	}

	chatReq := chatRequest{
		Model: c.model,
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: analysisOutputSchema(),
		},
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(sanitized)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		return Output{}, &UpstreamError{Err: errors.Wrap(err, "failed to marshal request")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Output{}, &UpstreamError{Err: errors.Wrap(err, "failed to create HTTP request")}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Output{}, &TimeoutError{Err: err}
		}
		return Output{}, &UpstreamError{Err: errors.Wrap(err, "HTTP request failed")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Output{}, &TimeoutError{Err: err}
		}
		return Output{}, &UpstreamError{Err: errors.Wrap(err, "failed to read response body")}
	}

	if resp.StatusCode != http.StatusOK {
		return Output{}, &UpstreamError{Status: resp.StatusCode, Detail: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return Output{}, &ParseError{Err: errors.Wrapf(err, "failed to parse completion envelope: %s", string(respBody))}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return Output{}, &ParseError{Err: errors.New("no content in completion response")}
	}

	content := chatResp.Choices[0].Message.Content
	var out Output
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Output{}, &ParseError{Err: errors.Wrapf(err, "failed to parse analysis output: %s", content)}
	}
	out.Raw = content
	return out, nil
}
