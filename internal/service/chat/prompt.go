package chat

import (
	"fmt"
	"strings"

	"github.com/kokoro-ai/kokoro/internal/model"
	"github.com/kokoro-ai/kokoro/internal/search"
)

// buildSystemPrompt composes the persona with the turn's dynamic
// context. A section whose source is empty is omitted entirely; the
// model never sees a bare header.
func (p *Pipeline) buildSystemPrompt(pctx turnContext) string {
	var b strings.Builder

	b.WriteString(p.persona.BaseSystem)

	if p.persona.Personality != "" {
		b.WriteString("\n\nPersonality: ")
		b.WriteString(p.persona.Personality)
	}

	appearance := p.state.Get("appearance", p.persona.Appearance)
	if appearance != "" {
		b.WriteString("\n\nAppearance: ")
		b.WriteString(appearance)
	}

	if pctx.mood != "" {
		fmt.Fprintf(&b, "\n\nCurrent mood: %s", pctx.mood)
	}

	if pctx.location != "" {
		fmt.Fprintf(&b, "\nCurrent location: %s", pctx.location)
	}

	if section := memorySection(pctx.memories, pctx.recalled); section != "" {
		b.WriteString("\n\nThings you remember:\n")
		b.WriteString(section)
	}

	if p.persona.Instructions != "" {
		b.WriteString("\n\n")
		b.WriteString(p.persona.Instructions)
	}

	return b.String()
}

// memorySection renders recency memories first, then semantic recalls,
// deduplicated by content.
func memorySection(memories []model.Memory, recalled []search.MemoryHit) string {
	seen := make(map[string]bool, len(memories)+len(recalled))
	var lines []string
	for _, m := range memories {
		if m.Content == "" || seen[m.Content] {
			continue
		}
		seen[m.Content] = true
		lines = append(lines, "- "+m.Content)
	}
	for _, h := range recalled {
		if h.Content == "" || seen[h.Content] {
			continue
		}
		seen[h.Content] = true
		lines = append(lines, "- "+h.Content)
	}
	return strings.Join(lines, "\n")
}
