package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TextEmbedder produces a vector for a piece of text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// MemoryBackend is the slice of QdrantIndex the memory store needs.
type MemoryBackend interface {
	UpsertPoint(ctx context.Context, id uuid.UUID, vector []float32, payload map[string]any) error
	Search(ctx context.Context, vector []float32, limit int) ([]Scored, error)
	Dims() int
}

// MemoryHit is one semantically similar stored memory.
type MemoryHit struct {
	ID      uuid.UUID
	Content string
	Kind    string
	Score   float32
}

// MemoryStore keeps long-term memories (thoughts, notable moments) in
// their own collection for similarity recall. Writes are best-effort
// from the pipeline's point of view; a miss here never fails a turn.
type MemoryStore struct {
	backend  MemoryBackend
	embedder TextEmbedder
	state    func() map[string]string
	logger   *slog.Logger
}

// NewMemoryStore wires the semantic memory store. state may be nil.
func NewMemoryStore(backend MemoryBackend, embedder TextEmbedder, state func() map[string]string, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{backend: backend, embedder: embedder, state: state, logger: logger}
}

// Store embeds content and writes it with its kind ("thought", "moment")
// and the current mood for later recall context.
func (m *MemoryStore) Store(ctx context.Context, content, kind string) (uuid.UUID, error) {
	vector, err := m.embedder.EmbedText(ctx, content)
	if err != nil {
		return uuid.Nil, fmt.Errorf("search: embed memory: %w", err)
	}
	if len(vector) != m.backend.Dims() {
		return uuid.Nil, fmt.Errorf("search: memory embedding has %d dims, collection expects %d", len(vector), m.backend.Dims())
	}

	id := uuid.New()
	payload := map[string]any{
		"content":   content,
		"kind":      kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if m.state != nil {
		if mood := m.state()["mood"]; mood != "" {
			payload["mood"] = mood
		}
	}

	if err := m.backend.UpsertPoint(ctx, id, vector, payload); err != nil {
		return uuid.Nil, fmt.Errorf("search: store memory: %w", err)
	}
	return id, nil
}

// SearchSimilar returns stored memories similar to query, best first,
// dropping hits below minScore.
func (m *MemoryStore) SearchSimilar(ctx context.Context, query string, limit int, minScore float32) ([]MemoryHit, error) {
	vector, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	scored, err := m.backend.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query memories: %w", err)
	}

	hits := make([]MemoryHit, 0, len(scored))
	for _, sp := range scored {
		if sp.Score < minScore {
			continue
		}
		hit := MemoryHit{ID: sp.ID, Score: sp.Score}
		if v, ok := sp.Payload["content"]; ok {
			hit.Content = v.GetStringValue()
		}
		if v, ok := sp.Payload["kind"]; ok {
			hit.Kind = v.GetStringValue()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
