// Package llm is the HTTP client of the text-in / text-out language
// model provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LLMClient = (*Client)(nil)

// Client implements driven.LLMClient against the provider's generate
// endpoint. Errors embed the HTTP status and body so the services
// layer can classify them by substring.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds provider connection configuration.
type Config struct {
	// BaseURL is the provider root.
	BaseURL string

	// APIKey authenticates requests; sent as a bearer token.
	APIKey string

	// Timeout is the transport-level cap. Attempt budgets are enforced
	// above this client, so it should exceed the largest attempt
	// timeout.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 150 * time.Second,
	}
}

// NewClient creates a new LLM client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Generate produces text for the prompt with the named model.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm generate with model %s: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm generate read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The status code and body feed the substring classification
		// of the retry policy; keep both in the message.
		return "", fmt.Errorf("llm generate with model %s: status %d: %s", model, resp.StatusCode, truncate(string(body), 300))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("llm generate decode: %w", err)
	}
	return out.Text, nil
}

// Ping verifies the provider is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("llm provider unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
