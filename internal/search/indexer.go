package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Backend is the slice of QdrantIndex the coordinator needs. Narrow so
// tests can count calls.
type Backend interface {
	UpdateRating(ctx context.Context, id uuid.UUID, rating int) error
	UpsertPoint(ctx context.Context, id uuid.UUID, vector []float32, payload map[string]any) error
	Dims() int
}

// BlobWriter uploads artifact bytes and returns their retrieval URL.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageEmbedder produces a vector for an image reachable by URL.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, url string) ([]float32, error)
}

// Outcome is the terminal state of one UpsertOrRate call.
type Outcome string

const (
	// OutcomeRated: the point already existed; only its rating changed.
	OutcomeRated Outcome = "rated"
	// OutcomeIndexed: a new point was embedded, uploaded, and upserted.
	OutcomeIndexed Outcome = "indexed"
)

// UpsertRequest describes one artifact to index or re-rate.
type UpsertRequest struct {
	ID        string // candidate identifier; replaced when not a valid UUID
	Rating    int
	SourceURL string // where the artifact bytes currently live
	Prompt    string
	Model     string
}

// UpsertResult reports what happened, including any identifier remap the
// caller must adopt for future correlation.
type UpsertResult struct {
	ID        uuid.UUID
	Remapped  bool
	Outcome   Outcome
	StoredURL string // set only on OutcomeIndexed
}

// Indexer keeps the vector backend and the blob store consistent for one
// artifact at a time. The write path is a saga: rate, else embed, then
// upload, then upsert, with no rollback. A blob that uploaded before a
// failed upsert is a known inconsistency window, re-converged by the
// next successful attempt for the same identifier.
type Indexer struct {
	backend  Backend
	blobs    BlobWriter
	embedder ImageEmbedder
	state    func() map[string]string // current character state for payload context
	fetch    *http.Client
	logger   *slog.Logger
}

// NewIndexer wires the coordinator. state may be nil when no character
// context should be attached to payloads.
func NewIndexer(backend Backend, blobs BlobWriter, embedder ImageEmbedder, state func() map[string]string, logger *slog.Logger) *Indexer {
	return &Indexer{
		backend:  backend,
		blobs:    blobs,
		embedder: embedder,
		state:    state,
		fetch:    &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// NormalizeID parses candidate as a UUID, minting a fresh one when it is
// not. The second return reports the substitution so callers keying on
// the original identifier can update their mapping.
func NormalizeID(candidate string) (uuid.UUID, bool) {
	if id, err := uuid.Parse(candidate); err == nil {
		return id, false
	}
	return uuid.New(), true
}

// UpsertOrRate guarantees exactly one of {update-existing, insert-new}
// for the artifact: a successful rating update short-circuits without
// re-embedding or re-uploading; not-found falls through to the insert
// path; any other rating failure aborts.
func (ix *Indexer) UpsertOrRate(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	id, remapped := NormalizeID(req.ID)
	if remapped {
		ix.logger.Info("indexer: replaced non-UUID identifier", "candidate", req.ID, "id", id)
	}
	res := UpsertResult{ID: id, Remapped: remapped}

	err := ix.backend.UpdateRating(ctx, id, req.Rating)
	if err == nil {
		res.Outcome = OutcomeRated
		return res, nil
	}
	switch Classify(err) {
	case KindNotFound:
		// Expected for a new artifact; fall through to the insert path.
	default:
		return res, fmt.Errorf("search: rate %s: %w", id, err)
	}

	vector, err := ix.embedder.EmbedImage(ctx, req.SourceURL)
	if err != nil {
		return res, fmt.Errorf("search: embed artifact %s: %w", id, err)
	}
	if len(vector) != ix.backend.Dims() {
		return res, fmt.Errorf("search: embedding has %d dims, collection expects %d", len(vector), ix.backend.Dims())
	}

	data, err := ix.download(ctx, req.SourceURL)
	if err != nil {
		return res, fmt.Errorf("search: fetch artifact %s: %w", id, err)
	}

	storedURL, err := ix.blobs.Put(ctx, id.String()+".jpg", data, "image/jpeg")
	if err != nil {
		return res, fmt.Errorf("search: upload artifact %s: %w", id, err)
	}

	payload := map[string]any{
		"prompt":     req.Prompt,
		"source_url": req.SourceURL,
		"url":        storedURL,
		"rating":     int64(req.Rating),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if req.Model != "" {
		payload["model"] = req.Model
	}
	if ix.state != nil {
		snapshot := ix.state()
		for _, key := range []string{"mood", "appearance", "location"} {
			if v := snapshot[key]; v != "" {
				payload[key] = v
			}
		}
	}

	if err := ix.backend.UpsertPoint(ctx, id, vector, payload); err != nil {
		// The blob is already uploaded at this point. Accepted: the next
		// attempt for this identifier overwrites the same key.
		return res, fmt.Errorf("search: upsert %s: %w", id, err)
	}

	res.Outcome = OutcomeIndexed
	res.StoredURL = storedURL
	return res, nil
}

func (ix *Indexer) download(ctx context.Context, srcURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ix.fetch.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
