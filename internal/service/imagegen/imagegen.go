// Package imagegen calls the image inference API that renders extracted
// scene prompts.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no API endpoint is set. Callers skip
// image generation entirely in that case.
var ErrNotConfigured = errors.New("imagegen: no API endpoint configured")

// Config holds the image API settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Width   int
	Height  int
	Timeout time.Duration
}

// Client renders prompts into hosted images.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an image generation client. Timeout defaults to 90s;
// diffusion backends are slow.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Width <= 0 {
		cfg.Width = 512
	}
	if cfg.Height <= 0 {
		cfg.Height = 512
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type generateResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Generate renders prompt and returns the URL of the hosted result.
// An empty URL with nil error means the backend declined the prompt;
// callers treat that the same as an error, minus the log noise.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", ErrNotConfigured
	}

	reqBody, err := json.Marshal(generateRequest{
		Prompt: prompt,
		Model:  c.cfg.Model,
		Width:  c.cfg.Width,
		Height: c.cfg.Height,
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/images", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("imagegen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("imagegen: status %d: %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("imagegen: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("imagegen: backend error: %s", result.Error)
	}
	return result.URL, nil
}
