// Package embedding provides vector generation for artifact indexing and
// semantic memory.
//
// Defines a Provider interface and an HTTP implementation backed by a
// sidecar model server. The interface allows swapping providers without
// changing consumers.
package embedding

import "context"

// Provider generates embedding vectors for text and for images
// reachable by URL.
type Provider interface {
	// EmbedText generates an embedding vector from text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage downloads the image behind url on the provider side and
	// returns its embedding vector.
	EmbedImage(ctx context.Context, url string) ([]float32, error)

	// TextDimensions returns the text embedding vector size.
	TextDimensions() int

	// ImageDimensions returns the image embedding vector size.
	ImageDimensions() int
}

// NoopProvider returns zero vectors. Used when no sidecar is configured;
// indexing still works, similarity just becomes meaningless.
type NoopProvider struct {
	textDims  int
	imageDims int
}

// NewNoopProvider creates a provider that returns zero vectors.
func NewNoopProvider(textDims, imageDims int) *NoopProvider {
	return &NoopProvider{textDims: textDims, imageDims: imageDims}
}

// TextDimensions returns the text embedding vector size.
func (p *NoopProvider) TextDimensions() int { return p.textDims }

// ImageDimensions returns the image embedding vector size.
func (p *NoopProvider) ImageDimensions() int { return p.imageDims }

// EmbedText returns a zero vector.
func (p *NoopProvider) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, p.textDims), nil
}

// EmbedImage returns a zero vector.
func (p *NoopProvider) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, p.imageDims), nil
}
