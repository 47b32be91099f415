package kokoro

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	dbPath      string
	personaFile string
	logger      *slog.Logger
	version     string
	completer   Completer
	images      ImageGenerator
	embedder    Embedder
}

// WithDBPath overrides the SQLite database path from config (KOKORO_DB_PATH env var).
func WithDBPath(path string) Option {
	return func(o *resolvedOptions) { o.dbPath = path }
}

// WithPersonaFile overrides the persona YAML path from config (KOKORO_PERSONA_FILE env var).
func WithPersonaFile(path string) Option {
	return func(o *resolvedOptions) { o.personaFile = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCompleter replaces the built-in completion client.
func WithCompleter(c Completer) Option {
	return func(o *resolvedOptions) { o.completer = c }
}

// WithImageGenerator replaces the built-in image generation client.
func WithImageGenerator(g ImageGenerator) Option {
	return func(o *resolvedOptions) { o.images = g }
}

// WithEmbedder replaces the auto-detected embedding provider (sidecar/noop).
func WithEmbedder(e Embedder) Option {
	return func(o *resolvedOptions) { o.embedder = e }
}
