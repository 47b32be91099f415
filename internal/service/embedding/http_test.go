package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProvider(t *testing.T) {
	// Mock sidecar returning fixed-dim embeddings on both routes.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var dims int
		switch r.URL.Path {
		case "/embed/text":
			var req embedTextRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			dims = 768
		case "/embed/image":
			var req embedImageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			dims = 512
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(i) * 0.001
		}
		if err := json.NewEncoder(w).Encode(embedResponse{Embedding: vec}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	t.Run("dimensions", func(t *testing.T) {
		p := NewHTTPProvider(server.URL, 768, 512)
		if p.TextDimensions() != 768 {
			t.Errorf("expected 768, got %d", p.TextDimensions())
		}
		if p.ImageDimensions() != 512 {
			t.Errorf("expected 512, got %d", p.ImageDimensions())
		}
	})

	t.Run("embed text", func(t *testing.T) {
		p := NewHTTPProvider(server.URL, 768, 512)
		vec, err := p.EmbedText(context.Background(), "test text")
		if err != nil {
			t.Fatal(err)
		}
		if len(vec) != 768 {
			t.Errorf("expected 768-dim vector, got %d", len(vec))
		}
		if vec[100] != 0.1 {
			t.Errorf("expected element 100 to be 0.1, got %f", vec[100])
		}
	})

	t.Run("embed image", func(t *testing.T) {
		p := NewHTTPProvider(server.URL, 768, 512)
		vec, err := p.EmbedImage(context.Background(), "http://example.com/a.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if len(vec) != 512 {
			t.Errorf("expected 512-dim vector, got %d", len(vec))
		}
	})
}

func TestHTTPProviderErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer server.Close()

		p := NewHTTPProvider(server.URL, 768, 512)
		if _, err := p.EmbedText(context.Background(), "test"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("empty embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(embedResponse{Embedding: nil})
		}))
		defer server.Close()

		p := NewHTTPProvider(server.URL, 768, 512)
		if _, err := p.EmbedImage(context.Background(), "http://example.com/a.jpg"); err == nil {
			t.Error("expected error for empty embedding, got nil")
		}
	})

	t.Run("invalid json response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		p := NewHTTPProvider(server.URL, 768, 512)
		if _, err := p.EmbedText(context.Background(), "test"); err == nil {
			t.Error("expected error for invalid json, got nil")
		}
	})
}

func TestNoopProvider(t *testing.T) {
	p := NewNoopProvider(768, 512)

	text, err := p.EmbedText(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if len(text) != 768 {
		t.Errorf("expected 768-dim zero vector, got %d", len(text))
	}

	img, err := p.EmbedImage(context.Background(), "http://example.com/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if len(img) != 512 {
		t.Errorf("expected 512-dim zero vector, got %d", len(img))
	}
}
