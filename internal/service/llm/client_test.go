package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string, capture *completionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCompleteMissingAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:0", Model: "m"})

	_, err := c.Complete(context.Background(), "sys", "hello", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleteOrdersMessages(t *testing.T) {
	var got completionRequest
	server := newTestServer(t, "hi!", &got)
	defer server.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
	reply, err := c.Complete(context.Background(), "be kind", "hello", []Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "earlier reply"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi!", reply)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be kind", got.Messages[0].Content)
	assert.Equal(t, "earlier", got.Messages[1].Content)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "hello", got.Messages[3].Content)
}

func TestCompleteProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"})
	_, err := c.Complete(context.Background(), "", "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"})
	_, err := c.Complete(context.Background(), "", "hello", nil)
	assert.Error(t, err)
}

func TestExtractorParsesFencedJSON(t *testing.T) {
	reply := "```json\n{\"main_text\": \"hi\", \"thoughts\": [\"hm\"], \"images\": [], \"mood\": \"calm\"}\n```"
	server := newTestServer(t, reply, nil)
	defer server.Close()

	e := NewExtractor(NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"}))
	res, err := e.Extract(context.Background(), "some unstructured text")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.MainText)
	assert.Equal(t, []string{"hm"}, res.Thoughts)
	assert.Equal(t, "calm", res.Mood)
}

func TestExtractorNullMood(t *testing.T) {
	server := newTestServer(t, `{"main_text": "hi", "thoughts": [], "images": [], "mood": null}`, nil)
	defer server.Close()

	e := NewExtractor(NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"}))
	res, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, res.Mood)
}

func TestExtractorInvalidJSON(t *testing.T) {
	server := newTestServer(t, "sorry, I can't do that", nil)
	defer server.Close()

	e := NewExtractor(NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"}))
	_, err := e.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestCleanJSONReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padded", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONReply(tt.in))
		})
	}
}
