package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kokoro-ai/kokoro/internal/parser"
)

// extractionPrompt asks for the same shape the tag parser produces so the
// two stages are interchangeable to the caller.
const extractionPrompt = `Extract the structure of the following character response.
Reply with ONLY a JSON object of this exact shape, no prose:
{"main_text": "...", "thoughts": ["..."], "images": ["..."], "mood": "..." or null}
- main_text: the reply with any internal monologue removed
- thoughts: internal reflections, if any
- images: visual scene descriptions the character wants to show, if any
- mood: a single mood word if one is clearly expressed, else null

Response:
`

// Extractor is the second parsing stage: it asks the completion provider
// to restructure a response the regex pass could not. Satisfies
// parser.Fallback.
type Extractor struct {
	client *Client
}

// NewExtractor wraps a completion client as a fallback extractor.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// Extract requests a structured rendering of raw. Any transport failure
// or unparseable reply is an error; the caller keeps its regex result.
func (e *Extractor) Extract(ctx context.Context, raw string) (*parser.Result, error) {
	reply, err := e.client.Complete(ctx, "", extractionPrompt+raw, nil)
	if err != nil {
		return nil, fmt.Errorf("llm: fallback completion: %w", err)
	}

	var result parser.Result
	if err := json.Unmarshal([]byte(cleanJSONReply(reply)), &result); err != nil {
		return nil, fmt.Errorf("llm: fallback returned invalid JSON: %w", err)
	}
	return &result, nil
}

// cleanJSONReply strips the markdown code fences models wrap JSON in.
func cleanJSONReply(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
