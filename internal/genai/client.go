// Package genai talks to an OpenAI-compatible chat-completions endpoint and
// decodes the loosely structured text it returns.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator produces free text from a prompt. The reply has no structural
// contract beyond "text"; callers must parse it defensively.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var errEmptyReply = errors.New("model returned no choices")

// Client implements Generator against a chat-completions HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient returns a Client with an explicit request timeout. The timeout
// doubles as the client-side bound on a hung model call.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as a single user message and returns the first
// choice's content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Bound the reply size; a rewritten blog post fits comfortably in 10 MB.
	const maxReplyBody = 10 << 20
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		return "", fmt.Errorf("read model reply: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model call returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode model reply: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errEmptyReply
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
