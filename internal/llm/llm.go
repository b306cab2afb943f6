// Package llm is the completion-service boundary: prompt in, structured
// JSON out. The orchestration layer owns validation; nothing past this
// package trusts raw model output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Completer is the contract the orchestrators require from a
// text-completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config describes an OpenAI-compatible chat-completions endpoint. Any
// vendor speaking that shape works, including a local Ollama.
type Config struct {
	BaseURL   string
	Model     string
	APIKeyEnv string
	MaxTokens int
}

// Client calls a chat-completions endpoint over HTTP.
type Client struct {
	cfg    Config
	apiKey string
	httpc  *http.Client
}

// NewClient builds a Client, reading the API key from the configured
// environment variable.
func NewClient(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		cfg:    cfg,
		apiKey: apiKey,
		httpc:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends a system instruction and user message, returning the raw
// assistant text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": 0.3,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ResponseError{Kind: KindRateLimited, Detail: "completion service rate limited"}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", &ResponseError{Kind: KindMalformedJSON, Detail: "no choices in completion response"}
	}

	return result.Choices[0].Message.Content, nil
}
