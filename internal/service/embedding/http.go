package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider generates embeddings via a sidecar model server exposing
// POST /embed/text and POST /embed/image. The sidecar owns model loading
// and image downloading; this client only moves JSON.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	textDims   int
	imageDims  int
}

// NewHTTPProvider creates a provider that calls the embedding sidecar.
// Dimensions must match the sidecar's models (e.g. 768 for a sentence
// transformer, 512 for CLIP image features).
func NewHTTPProvider(baseURL string, textDims, imageDims int) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		textDims:  textDims,
		imageDims: imageDims,
	}
}

// TextDimensions returns the text embedding vector size.
func (p *HTTPProvider) TextDimensions() int { return p.textDims }

// ImageDimensions returns the image embedding vector size.
func (p *HTTPProvider) ImageDimensions() int { return p.imageDims }

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedImageRequest struct {
	URL string `json:"url"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText generates a text embedding.
func (p *HTTPProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return p.post(ctx, "/embed/text", embedTextRequest{Text: text})
}

// EmbedImage asks the sidecar to fetch and embed the image behind url.
func (p *HTTPProvider) EmbedImage(ctx context.Context, url string) ([]float32, error) {
	return p.post(ctx, "/embed/image", embedImageRequest{URL: url})
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload any) ([]float32, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding: status %d: %s", resp.StatusCode, string(body))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty embedding returned")
	}
	return result.Embedding, nil
}
