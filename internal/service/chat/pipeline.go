// Package chat is the turn orchestrator: it gathers context, requests a
// completion, parses it, persists what was extracted, and fans out image
// generation and indexing.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kokoro-ai/kokoro/internal/memory"
	"github.com/kokoro-ai/kokoro/internal/model"
	"github.com/kokoro-ai/kokoro/internal/parser"
	"github.com/kokoro-ai/kokoro/internal/persona"
	"github.com/kokoro-ai/kokoro/internal/search"
	"github.com/kokoro-ai/kokoro/internal/service/llm"
	"github.com/kokoro-ai/kokoro/internal/state"
)

// Completer requests a chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, history []llm.Message) (string, error)
}

// ImageGenerator renders a prompt into a hosted image URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ArtifactIndexer persists a generated image into the vector index and
// blob store.
type ArtifactIndexer interface {
	UpsertOrRate(ctx context.Context, req search.UpsertRequest) (search.UpsertResult, error)
}

// SemanticMemory is the optional long-term recall store.
type SemanticMemory interface {
	Store(ctx context.Context, content, kind string) (uuid.UUID, error)
	SearchSimilar(ctx context.Context, query string, limit int, minScore float32) ([]search.MemoryHit, error)
}

// GeneratedImage is one successfully rendered image of a reply.
type GeneratedImage struct {
	ID        uuid.UUID
	Prompt    string
	URL       string
	StoredURL string // empty when indexing did not complete
}

// Reply is the result of one processed user message.
type Reply struct {
	Text     string
	Thoughts []string
	Images   []GeneratedImage
	Mood     string
}

// Config tunes the pipeline.
type Config struct {
	HistoryLimit     int
	MemoryLimit      int
	ImageConcurrency int
	ImageModel       string
	MemoryMinScore   float32
}

// Pipeline composes the stores and collaborators for one character.
type Pipeline struct {
	parser    *parser.Parser
	state     *state.Store
	log       *memory.Log
	completer Completer
	images    ImageGenerator
	indexer   ArtifactIndexer
	memories  SemanticMemory // may be nil
	persona   persona.Persona
	cfg       Config
	logger    *slog.Logger
}

// New wires a Pipeline. images, indexer, and memories may be nil; the
// corresponding steps are skipped.
func New(p *parser.Parser, st *state.Store, log *memory.Log, completer Completer,
	images ImageGenerator, indexer ArtifactIndexer, memories SemanticMemory,
	pers persona.Persona, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = 5
	}
	if cfg.ImageConcurrency <= 0 {
		cfg.ImageConcurrency = 3
	}
	return &Pipeline{
		parser:    p,
		state:     st,
		log:       log,
		completer: completer,
		images:    images,
		indexer:   indexer,
		memories:  memories,
		persona:   pers,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessMessage runs one full turn. Context reads degrade instead of
// aborting; a completion failure is rendered as an apology; per-image
// failures are isolated.
func (p *Pipeline) ProcessMessage(ctx context.Context, text string) (Reply, error) {
	pctx := p.gatherContext(ctx, text)

	systemPrompt := p.buildSystemPrompt(pctx)

	completion, err := p.completer.Complete(ctx, systemPrompt, text, pctx.history)
	if err != nil {
		// Fatal for this turn only. The user gets a readable apology with
		// the underlying detail; nothing is persisted.
		p.logger.Error("chat: completion failed", "error", err)
		return Reply{Text: apology(err)}, nil
	}

	parsed := p.parser.Parse(ctx, completion)

	p.persist(ctx, text, parsed)

	reply := Reply{
		Text:     parsed.MainText,
		Thoughts: parsed.Thoughts,
		Mood:     parsed.Mood,
	}
	reply.Images = p.generateImages(ctx, parsed.Images)
	return reply, nil
}

// turnContext is everything read before the completion call.
type turnContext struct {
	history  []llm.Message
	mood     string
	memories []model.Memory
	recalled []search.MemoryHit
	location string
}

// gatherContext tolerates failure per sub-read: a failed read logs and
// leaves its section empty rather than aborting the turn.
func (p *Pipeline) gatherContext(ctx context.Context, text string) turnContext {
	var pctx turnContext

	turns, err := p.log.RecentTurns(ctx, p.cfg.HistoryLimit)
	if err != nil {
		p.logger.Warn("chat: reading history failed", "error", err)
	}
	for _, t := range turns {
		pctx.history = append(pctx.history, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	pctx.mood, err = p.log.CurrentMood(ctx)
	if err != nil {
		p.logger.Warn("chat: reading mood failed", "error", err)
		pctx.mood = model.DefaultMood
	}

	pctx.memories, err = p.log.RelevantMemories(ctx, text, p.cfg.MemoryLimit)
	if err != nil {
		p.logger.Warn("chat: reading memories failed", "error", err)
	}

	if p.memories != nil {
		pctx.recalled, err = p.memories.SearchSimilar(ctx, text, p.cfg.MemoryLimit, p.cfg.MemoryMinScore)
		if err != nil {
			p.logger.Warn("chat: semantic recall failed", "error", err)
		}
	}

	pctx.location = p.state.Get("location", "")
	return pctx
}

// persist writes the turn's artifacts. The user turn always lands before
// the assistant turn. Failures here are logged, not fatal; the reply
// still goes out.
func (p *Pipeline) persist(ctx context.Context, userText string, parsed parser.Result) {
	if _, err := p.log.AppendTurn(ctx, model.RoleUser, userText); err != nil {
		p.logger.Error("chat: persisting user turn failed", "error", err)
	}
	if _, err := p.log.AppendTurn(ctx, model.RoleAssistant, parsed.MainText); err != nil {
		p.logger.Error("chat: persisting assistant turn failed", "error", err)
	}

	for _, thought := range parsed.Thoughts {
		if _, err := p.log.AppendThought(ctx, thought, model.DefaultThoughtImportance); err != nil {
			p.logger.Warn("chat: persisting thought failed", "error", err)
		}
		if p.memories != nil {
			if _, err := p.memories.Store(ctx, thought, "thought"); err != nil {
				p.logger.Warn("chat: storing semantic memory failed", "error", err)
			}
		}
	}

	if parsed.Mood != "" {
		if err := p.state.Set(ctx, "mood", parsed.Mood); err != nil {
			p.logger.Warn("chat: updating mood state failed", "error", err)
		}
		if _, err := p.log.AppendMood(ctx, parsed.Mood, 1.0); err != nil {
			p.logger.Warn("chat: logging mood failed", "error", err)
		}
	}
}

// generateImages renders and indexes each prompt. Independent prompts
// run concurrently; each image's generate-then-index pair stays ordered.
// One failed image never cancels its siblings.
func (p *Pipeline) generateImages(ctx context.Context, prompts []string) []GeneratedImage {
	if p.images == nil || len(prompts) == 0 {
		return nil
	}

	slots := make([]*GeneratedImage, len(prompts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ImageConcurrency)
	for i, prompt := range prompts {
		g.Go(func() error {
			url, err := p.images.Generate(gctx, prompt)
			if err != nil || url == "" {
				p.logger.Warn("chat: image generation failed", "prompt", prompt, "error", err)
				return nil
			}

			img := GeneratedImage{ID: uuid.New(), Prompt: prompt, URL: url}
			if p.indexer != nil {
				res, err := p.indexer.UpsertOrRate(gctx, search.UpsertRequest{
					ID:        img.ID.String(),
					SourceURL: url,
					Prompt:    prompt,
					Model:     p.cfg.ImageModel,
				})
				if err != nil {
					// The image itself rendered; keep it in the reply and
					// leave indexing to a later rating pass.
					p.logger.Warn("chat: image indexing failed", "id", img.ID, "error", err)
				} else {
					img.ID = res.ID
					img.StoredURL = res.StoredURL
				}
			}

			mu.Lock()
			slots[i] = &img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are logged per item

	images := make([]GeneratedImage, 0, len(prompts))
	for _, img := range slots {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images
}

func apology(err error) string {
	return fmt.Sprintf("I'm having trouble connecting to my thoughts right now. %v", err)
}
