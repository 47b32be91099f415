package kokoro

import "context"

// Completer requests a chat completion.
// When provided via WithCompleter, replaces the built-in OpenRouter client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, history []Message) (string, error)
}

// ImageGenerator renders a prompt into a hosted image URL.
// When provided via WithImageGenerator, replaces the built-in HTTP client.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder generates vectors for text and for images reachable by URL.
// When provided via WithEmbedder, replaces the auto-detected sidecar/noop
// provider. Uses []float32 and plain strings so external consumers need
// no internal package imports.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, url string) ([]float32, error)
	TextDimensions() int
	ImageDimensions() int
}
