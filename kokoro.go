// Package kokoro wires the conversational companion backend: the tagged
// response parser, character state, conversation log, and the dual
// vector/blob artifact stores, behind a single ProcessMessage entry
// point.
package kokoro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kokoro-ai/kokoro/internal/blob"
	"github.com/kokoro-ai/kokoro/internal/config"
	"github.com/kokoro-ai/kokoro/internal/memory"
	"github.com/kokoro-ai/kokoro/internal/parser"
	"github.com/kokoro-ai/kokoro/internal/persona"
	"github.com/kokoro-ai/kokoro/internal/search"
	"github.com/kokoro-ai/kokoro/internal/service/chat"
	"github.com/kokoro-ai/kokoro/internal/service/embedding"
	"github.com/kokoro-ai/kokoro/internal/service/imagegen"
	"github.com/kokoro-ai/kokoro/internal/service/llm"
	"github.com/kokoro-ai/kokoro/internal/state"
	"github.com/kokoro-ai/kokoro/internal/storage"
)

// ErrNotConfigured is returned by operations whose backing service was
// not configured (e.g. artifact indexing without Qdrant or MinIO).
var ErrNotConfigured = errors.New("kokoro: service not configured")

// App is the assembled backend. Construct with New, release with Close.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	db       *storage.DB
	state    *state.Store
	log      *memory.Log
	blobs    *blob.Store
	imageIdx *search.QdrantIndex
	memIdx   *search.QdrantIndex
	indexer  *search.Indexer
	memories *search.MemoryStore
	pipeline *chat.Pipeline

	version string
}

// New loads configuration, opens storage, and wires all collaborators.
// Vector indexing and blob storage are optional: when their settings are
// absent the app runs chat-only and artifact operations return
// ErrNotConfigured.
func New(opts ...Option) (*App, error) {
	var o resolvedOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.personaFile != "" {
		cfg.PersonaFile = o.personaFile
	}

	pers, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath, o.logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	st, err := state.New(ctx, db, o.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		logger:  o.logger,
		db:      db,
		state:   st,
		log:     memory.NewLog(db, o.logger),
		version: o.version,
	}

	embedder := app.resolveEmbedder(o)

	var client *llm.Client
	completer := chat.Completer(nil)
	if o.completer != nil {
		completer = completerAdapter{o.completer}
	} else {
		client = llm.NewClient(llm.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
			Referer: cfg.LLMReferer,
			Title:   cfg.LLMTitle,
		})
		completer = client
	}

	var fallback parser.Fallback
	if client != nil {
		fallback = llm.NewExtractor(client)
	}
	tagParser := parser.New(fallback, o.logger)

	if cfg.MinioEndpoint != "" && cfg.MinioAccessKey != "" {
		app.blobs, err = blob.New(blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, o.logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if cfg.QdrantURL != "" {
		app.imageIdx, err = search.NewQdrantIndex(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.ImageCollection,
			Dims:       uint64(cfg.ImageDims), //nolint:gosec
			Distance:   cfg.QdrantDistance,
		}, o.logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		app.memIdx, err = search.NewQdrantIndex(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.MemoryCollection,
			Dims:       uint64(cfg.MemoryDims), //nolint:gosec
			Distance:   cfg.QdrantDistance,
		}, o.logger)
		if err != nil {
			_ = app.imageIdx.Close()
			_ = db.Close()
			return nil, err
		}
	}

	if app.imageIdx != nil && app.blobs != nil {
		app.indexer = search.NewIndexer(app.imageIdx, app.blobs, embedder, st.Snapshot, o.logger)
	}
	if app.memIdx != nil {
		app.memories = search.NewMemoryStore(app.memIdx, embedder, st.Snapshot, o.logger)
	}

	var images chat.ImageGenerator
	if o.images != nil {
		images = o.images
	} else if cfg.ImageAPIURL != "" {
		images = imagegen.NewClient(imagegen.Config{
			BaseURL: cfg.ImageAPIURL,
			APIKey:  cfg.ImageAPIKey,
			Model:   cfg.ImageModel,
			Width:   cfg.ImageWidth,
			Height:  cfg.ImageHeight,
			Timeout: cfg.ImageTimeout,
		})
	}

	var indexer chat.ArtifactIndexer
	if app.indexer != nil {
		indexer = app.indexer
	}
	var memories chat.SemanticMemory
	if app.memories != nil {
		memories = app.memories
	}

	app.pipeline = chat.New(tagParser, st, app.log, completer, images, indexer, memories, pers, chat.Config{
		HistoryLimit:     cfg.HistoryLimit,
		MemoryLimit:      cfg.MemoryLimit,
		ImageConcurrency: cfg.ImageConcurrency,
		ImageModel:       cfg.ImageModel,
	}, o.logger)

	o.logger.Info("kokoro: initialized",
		"version", app.version,
		"db", cfg.DBPath,
		"vector_indexing", app.indexer != nil,
		"semantic_memory", app.memories != nil,
	)
	return app, nil
}

// resolveEmbedder picks the injected provider, the HTTP sidecar, or the
// noop fallback, in that order.
func (a *App) resolveEmbedder(o resolvedOptions) Embedder {
	if o.embedder != nil {
		return o.embedder
	}
	useHTTP := a.cfg.EmbeddingURL != "" && a.cfg.EmbeddingProvider != "noop"
	if a.cfg.EmbeddingProvider == "http" && a.cfg.EmbeddingURL == "" {
		a.logger.Warn("kokoro: embedding provider set to http but no KOKORO_EMBEDDING_URL; using noop")
	}
	if useHTTP {
		return embedding.NewHTTPProvider(a.cfg.EmbeddingURL, a.cfg.MemoryDims, a.cfg.ImageDims)
	}
	a.logger.Warn("kokoro: no embedding sidecar configured; vectors will be zeros")
	return embedding.NewNoopProvider(a.cfg.MemoryDims, a.cfg.ImageDims)
}

// Bootstrap ensures the backing stores exist: the blob bucket and both
// vector collections. Call once at startup; failures leave the app
// usable for chat, so callers may choose to log and continue.
func (a *App) Bootstrap(ctx context.Context) error {
	if a.blobs != nil {
		if err := a.blobs.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	if a.imageIdx != nil {
		if err := a.imageIdx.EnsureCollection(ctx); err != nil {
			return err
		}
	}
	if a.memIdx != nil {
		if err := a.memIdx.EnsureCollection(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Health reports whether the vector backend is reachable. Results are
// cached briefly by the underlying index, so this is cheap to call per
// request. Returns ErrNotConfigured when no backend is configured.
func (a *App) Health(ctx context.Context) error {
	if a.imageIdx == nil && a.memIdx == nil {
		return ErrNotConfigured
	}
	if a.imageIdx != nil {
		if err := a.imageIdx.Healthy(ctx); err != nil {
			return err
		}
	}
	if a.memIdx != nil {
		return a.memIdx.Healthy(ctx)
	}
	return nil
}

// ProcessMessage runs one conversation turn.
func (a *App) ProcessMessage(ctx context.Context, text string) (Reply, error) {
	r, err := a.pipeline.ProcessMessage(ctx, text)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Text: r.Text, Thoughts: r.Thoughts, Mood: r.Mood}
	for _, img := range r.Images {
		reply.Images = append(reply.Images, GeneratedImage(img))
	}
	return reply, nil
}

// CurrentMood returns the most recently logged mood, defaulting to
// "neutral".
func (a *App) CurrentMood(ctx context.Context) (string, error) {
	return a.log.CurrentMood(ctx)
}

// State returns a copy of the full character state map.
func (a *App) State() map[string]string {
	return a.state.Snapshot()
}

// StateValue returns one character state attribute, or def when unset.
func (a *App) StateValue(key, def string) string {
	return a.state.Get(key, def)
}

// StateHistory returns the most recent persisted state snapshots, newest
// first.
func (a *App) StateHistory(ctx context.Context, limit int) ([]StateSnapshot, error) {
	snaps, err := a.state.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]StateSnapshot, len(snaps))
	for i, s := range snaps {
		out[i] = StateSnapshot{State: s.State, CreatedAt: s.CreatedAt}
	}
	return out, nil
}

// RecentTurns returns the last turns in chronological order.
func (a *App) RecentTurns(ctx context.Context, limit int) ([]Turn, error) {
	turns, err := a.log.RecentTurns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = Turn{ID: t.ID, Role: Role(t.Role), Content: t.Content, CreatedAt: t.CreatedAt}
	}
	return out, nil
}

// RecentThoughts returns the last thoughts, newest first.
func (a *App) RecentThoughts(ctx context.Context, limit int) ([]Thought, error) {
	thoughts, err := a.log.RecentThoughts(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Thought, len(thoughts))
	for i, th := range thoughts {
		out[i] = Thought{ID: th.ID, Content: th.Content, Importance: th.Importance, CreatedAt: th.CreatedAt}
	}
	return out, nil
}

// RecentMoods returns the last mood events, newest first.
func (a *App) RecentMoods(ctx context.Context, limit int) ([]MoodEvent, error) {
	events, err := a.log.RecentMoods(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]MoodEvent, len(events))
	for i, ev := range events {
		out[i] = MoodEvent{ID: ev.ID, Mood: ev.Mood, Intensity: ev.Intensity, CreatedAt: ev.CreatedAt}
	}
	return out, nil
}

// ArtifactRequest describes one artifact to index or re-rate.
type ArtifactRequest struct {
	ID        string // candidate identifier; replaced when not a valid UUID
	Rating    int
	SourceURL string
	Prompt    string
	Model     string
}

// UpsertArtifact indexes a new artifact or re-rates an existing one.
func (a *App) UpsertArtifact(ctx context.Context, req ArtifactRequest) (ArtifactResult, error) {
	if a.indexer == nil {
		return ArtifactResult{}, ErrNotConfigured
	}
	res, err := a.indexer.UpsertOrRate(ctx, search.UpsertRequest{
		ID:        req.ID,
		Rating:    req.Rating,
		SourceURL: req.SourceURL,
		Prompt:    req.Prompt,
		Model:     req.Model,
	})
	if err != nil {
		return ArtifactResult{}, err
	}
	return ArtifactResult{
		ID:        res.ID,
		Remapped:  res.Remapped,
		Outcome:   ArtifactOutcome(res.Outcome),
		StoredURL: res.StoredURL,
	}, nil
}

// RateArtifact updates only the rating of an already-indexed artifact.
func (a *App) RateArtifact(ctx context.Context, id string, rating int) (ArtifactResult, error) {
	return a.UpsertArtifact(ctx, ArtifactRequest{ID: id, Rating: rating})
}

// Remember stores a free-form moment in the semantic memory collection.
func (a *App) Remember(ctx context.Context, content string) error {
	if a.memories == nil {
		return ErrNotConfigured
	}
	_, err := a.memories.Store(ctx, content, "moment")
	return err
}

// SearchMemories returns stored memories semantically similar to query.
func (a *App) SearchMemories(ctx context.Context, query string, limit int) ([]MemoryHit, error) {
	if a.memories == nil {
		return nil, ErrNotConfigured
	}
	hits, err := a.memories.SearchSimilar(ctx, query, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]MemoryHit, len(hits))
	for i, h := range hits {
		out[i] = MemoryHit(h)
	}
	return out, nil
}

// Close releases storage handles and backend connections.
func (a *App) Close() error {
	var errs []error
	if a.imageIdx != nil {
		errs = append(errs, a.imageIdx.Close())
	}
	if a.memIdx != nil {
		errs = append(errs, a.memIdx.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("kokoro: close: %w", err)
	}
	return nil
}

// completerAdapter bridges the public Completer to the internal message
// type.
type completerAdapter struct {
	c Completer
}

func (a completerAdapter) Complete(ctx context.Context, systemPrompt, userMessage string, history []llm.Message) (string, error) {
	msgs := make([]Message, len(history))
	for i, m := range history {
		msgs[i] = Message(m)
	}
	return a.c.Complete(ctx, systemPrompt, userMessage, msgs)
}
