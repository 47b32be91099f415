package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		host    string
		port    int
		tls     bool
		wantErr bool
	}{
		{
			name:   "https cloud URL with REST port",
			rawURL: "https://xyz.cloud.qdrant.io:6333",
			host:   "xyz.cloud.qdrant.io",
			port:   6334, // REST 6333 → gRPC 6334
			tls:    true,
		},
		{
			name:   "https cloud URL with gRPC port",
			rawURL: "https://xyz.cloud.qdrant.io:6334",
			host:   "xyz.cloud.qdrant.io",
			port:   6334,
			tls:    true,
		},
		{
			name:   "http local URL",
			rawURL: "http://localhost:6333",
			host:   "localhost",
			port:   6334,
			tls:    false,
		},
		{
			name:   "http no port defaults to 6334",
			rawURL: "http://qdrant.internal",
			host:   "qdrant.internal",
			port:   6334,
			tls:    false,
		},
		{
			name:   "custom port preserved",
			rawURL: "https://qdrant.example.com:9334",
			host:   "qdrant.example.com",
			port:   9334,
			tls:    true,
		},
		{
			name:    "empty URL",
			rawURL:  "",
			wantErr: true,
		},
		{
			name:    "garbage URL",
			rawURL:  "::::",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, tls, err := parseQdrantURL(tt.rawURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.tls, tls)
		})
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		in   string
		want qdrant.Distance
	}{
		{"cosine", qdrant.Distance_Cosine},
		{"euclidean", qdrant.Distance_Euclid},
		{"dot", qdrant.Distance_Dot},
		{"", qdrant.Distance_Cosine},
		{"unknown", qdrant.Distance_Cosine},
	}
	for _, tt := range tests {
		t.Run("distance "+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDistance(tt.in))
		})
	}
}

func TestUpdateRatingBoundedWithoutCallerDeadline(t *testing.T) {
	// 192.0.2.0/24 is reserved and unroutable: the dial either hangs
	// until the operation timeout or fails outright. Either way a
	// deadline-free caller must get its error back promptly.
	q, err := NewQdrantIndex(QdrantConfig{
		URL:        "http://192.0.2.1:6334",
		Collection: "kokoro_images",
		Dims:       512,
	}, slog.Default())
	require.NoError(t, err)
	defer func() { _ = q.Close() }()
	q.opTimeout = 100 * time.Millisecond

	start := time.Now()
	err = q.UpdateRating(context.Background(), uuid.New(), 4)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHealthCacheFastPath(t *testing.T) {
	q, err := NewQdrantIndex(QdrantConfig{
		URL:        "http://192.0.2.1:6334",
		Collection: "kokoro_images",
		Dims:       512,
	}, slog.Default())
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	// A fresh cached result is returned without touching the network.
	sentinel := errors.New("cached failure")
	q.storeHealthErr(sentinel)
	q.healthAt.Store(time.Now().UnixNano())

	start := time.Now()
	assert.ErrorIs(t, q.Healthy(context.Background()), sentinel)
	assert.Less(t, time.Since(start), time.Second)

	q.storeHealthErr(nil)
	assert.NoError(t, q.Healthy(context.Background()))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel not found", ErrNotFound, KindNotFound},
		{"wrapped sentinel", errors.Join(errors.New("rate x"), ErrNotFound), KindNotFound},
		{"grpc not found", status.Error(codes.NotFound, "no such point"), KindNotFound},
		{"grpc unavailable", status.Error(codes.Unavailable, "connection refused"), KindTransient},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "timeout"), KindTransient},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), KindTransient},
		{"context deadline", context.DeadlineExceeded, KindTransient},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad vector"), KindFatal},
		{"plain error", errors.New("something odd"), KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
