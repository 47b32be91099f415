// Package search coordinates the vector backend: collection bootstrap,
// idempotent artifact indexing with blob upload, rating updates, and
// semantic memory retrieval.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds configuration for one Qdrant collection.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
	Distance   string // "cosine", "euclidean", or "dot"; defaults to cosine
}

// Scored is one similarity search hit.
type Scored struct {
	ID      uuid.UUID
	Score   float32
	Payload map[string]*qdrant.Value
}

// defaultOpTimeout bounds every gRPC call the index makes. Callers
// often pass deadline-free contexts (signal contexts, errgroup
// contexts); a hung backend must never park them indefinitely.
const defaultOpTimeout = 10 * time.Second

// QdrantIndex is a thin, typed adapter over one Qdrant collection.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	distance   qdrant.Distance
	opTimeout  time.Duration
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// parseDistance maps a config string to the backend metric. Unknown
// values fall back to cosine.
func parseDistance(s string) qdrant.Distance {
	switch s {
	case "euclidean":
		return qdrant.Distance_Euclid
	case "dot":
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// NewQdrantIndex creates a QdrantIndex and connects to the server via gRPC.
func NewQdrantIndex(cfg QdrantConfig, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		distance:   parseDistance(cfg.Distance),
		opTimeout:  defaultOpTimeout,
		logger:     logger,
	}, nil
}

// opCtx derives the per-operation deadline from the caller's context.
func (q *QdrantIndex) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, q.opTimeout)
}

// Dims returns the collection's configured vector size.
func (q *QdrantIndex) Dims() int {
	return int(q.dims)
}

// EnsureCollection creates the collection if it doesn't already exist.
// The exists-then-create pair is not transactional; a concurrent first
// use from another process may win the race, and "already exists" from
// the create call is treated as success.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}
	if exists {
		q.logger.Info("qdrant: collection already exists", "collection", q.collection)
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dims,
			Distance: q.distance,
		}),
	}); err != nil {
		// Lost the check-then-create race to another process. Creation is
		// idempotent in effect, so this is success.
		if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("search: create collection %q: %w", q.collection, err)
	}
	q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", q.dims)
	return nil
}

// UpsertPoint writes one vector with its payload, waiting for the write
// to be applied before returning.
func (q *QdrantIndex) UpsertPoint(ctx context.Context, id uuid.UUID, vector []float32, payload map[string]any) error {
	if uint64(len(vector)) != q.dims {
		return fmt.Errorf("search: vector has %d dims, collection %q expects %d", len(vector), q.collection, q.dims)
	}

	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id.String()),
			Vectors: qdrant.NewVectorsDense(vector),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant upsert %s: %w", id, err)
	}
	return nil
}

// UpdateRating overwrites only the rating payload field of an existing
// point. Returns ErrNotFound (without writing) when the point does not
// exist; the vector and the rest of the payload are never touched.
func (q *QdrantIndex) UpdateRating(ctx context.Context, id uuid.UUID, rating int) error {
	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id.String())},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant get %s: %w", id, err)
	}
	if len(points) == 0 {
		return fmt.Errorf("search: rate %s: %w", id, ErrNotFound)
	}

	_, err = q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        qdrant.NewValueMap(map[string]any{"rating": int64(rating)}),
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewID(id.String())},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant set rating %s: %w", id, err)
	}
	return nil
}

// Search returns the points most similar to the query vector, best first.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = 10
	}
	fetchLimit := uint64(limit) //nolint:gosec

	ctx, cancel := q.opCtx(ctx)
	defer cancel()

	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	results := make([]Scored, 0, len(scored))
	for _, sp := range scored {
		idStr := sp.Id.GetUuid()
		if idStr == "" {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			q.logger.Warn("qdrant: invalid UUID in point ID", "id", idStr)
			continue
		}
		results = append(results, Scored{ID: id, Score: sp.Score, Payload: sp.Payload})
	}
	return results, nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5 seconds
// to avoid hammering the health endpoint. Concurrent calls after cache expiry
// are deduplicated via singleflight so only one gRPC call is made; all
// waiters share its result.
func (q *QdrantIndex) Healthy(ctx context.Context) error {
	// Fast path: return the cached result if fresh.
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// Deduplicate concurrent checks. Use context.Background() instead of the
	// caller's ctx because singleflight reuses the first caller's context —
	// if that caller cancels, all waiters would get a stale error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			wrapped := fmt.Errorf("search: qdrant unhealthy: %w", err)
			q.storeHealthErr(wrapped)
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so we wrap it in a pointer.
func (q *QdrantIndex) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

// loadHealthErr loads the cached health error.
func (q *QdrantIndex) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
