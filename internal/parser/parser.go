// Package parser extracts structured segments (thoughts, image prompts,
// mood) from free-form model output. A deterministic regex pass runs
// first; a fallback extractor is consulted only when the pass finds
// nothing at all.
package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Result is the structured view of one model response.
type Result struct {
	MainText string   `json:"main_text"`
	Thoughts []string `json:"thoughts"`
	Images   []string `json:"images"`
	Mood     string   `json:"mood"` // empty when the response carried no mood
}

// Fallback recovers a Result from text the regex pass could not parse.
// Implementations are expected to be network-backed and may fail; the
// parser treats any error as "keep the regex result".
type Fallback interface {
	Extract(ctx context.Context, raw string) (*Result, error)
}

// Each tag family is matched in three surface syntaxes the model is known
// to produce. The double-star pattern must run before the single-star one
// or the single-star regex would bite the opening star of a `**tag:`
// wrapper and mangle the match. Mixed-syntax tags (e.g. `<thought>...**`)
// match nothing and pass through as plain text.
var (
	thoughtPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<thought>(.*?)</thought>`),
		regexp.MustCompile(`\*\*thought:\s*(.*?)\*\*`),
		regexp.MustCompile(`\*thought:\s*(.*?)\*`),
	}
	imagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<image>(.*?)</image>`),
		regexp.MustCompile(`\*\*image:\s*(.*?)\*\*`),
		regexp.MustCompile(`\*image:\s*(.*?)\*`),
	}
	moodPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<mood>(.*?)</mood>`),
		regexp.MustCompile(`\*\*mood:\s*(.*?)\*\*`),
		regexp.MustCompile(`\*mood:\s*(.*?)\*`),
	}

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Parser turns raw model output into a Result. The zero value works; a
// Fallback is optional.
type Parser struct {
	fallback Fallback
	logger   *slog.Logger
}

// New creates a Parser. fallback may be nil to disable the second stage.
func New(fallback Fallback, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{fallback: fallback, logger: logger}
}

// Parse never fails: worst case the whole input comes back as MainText
// with no extractions. Unterminated tags are left in place.
func (p *Parser) Parse(ctx context.Context, raw string) Result {
	text := raw

	var thoughts []string
	text = extractAll(text, thoughtPatterns, &thoughts)

	var images []string
	text = extractAll(text, imagePatterns, &images)

	text, mood := extractFirst(text, moodPatterns)

	res := Result{
		MainText: tidy(text),
		Thoughts: thoughts,
		Images:   images,
		Mood:     mood,
	}

	if len(thoughts) == 0 && len(images) == 0 && mood == "" && p.fallback != nil {
		if recovered, err := p.fallback.Extract(ctx, raw); err != nil {
			p.logger.Debug("parser: fallback extraction failed", "error", err)
		} else if recovered != nil {
			recovered.MainText = tidy(recovered.MainText)
			return *recovered
		}
	}
	return res
}

// extractAll removes every match of each pattern in turn, appending the
// trimmed captures to out in text order per pattern.
func extractAll(text string, patterns []*regexp.Regexp, out *[]string) string {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			*out = append(*out, strings.TrimSpace(m[1]))
		}
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// extractFirst removes only the first match found across the patterns.
// Only one mood per response is meaningful.
func extractFirst(text string, patterns []*regexp.Regexp) (string, string) {
	for _, re := range patterns {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			value := strings.TrimSpace(text[m[2]:m[3]])
			return text[:m[0]] + text[m[1]:], value
		}
	}
	return text, ""
}

func tidy(text string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}
