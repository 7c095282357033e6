package illustrate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"illustro/internal/llm"
	"illustro/internal/llmjson"
)

// maxExtractInputLen bounds the completion's token cost; message text
// beyond this adds little signal for keyword extraction.
const maxExtractInputLen = 2000

const extractionPrompt = `You derive image search queries from a chat message.
Read the message and produce up to %d short search phrases that would find a
single illustrative image for it. Prefer concrete nouns and named subjects over
abstract phrasing. For each phrase, pick the best source:
- "encyclopedic" for well-known subjects, places, organisms, artworks, history
- "web" for products, current events, niche or pop-culture subjects
- "either" when both could work

Respond ONLY with JSON in this exact shape, no other text:
{"queries": [{"text": "...", "source": "encyclopedic|web|either"}], "source": "encyclopedic|web|either"}

The top-level "source" is your overall preference for this message.

MESSAGE:
%s`

// Extractor turns message text into an ordered query list via one
// low-temperature completion. It never returns an error: any transport
// or parse failure degrades to zero queries and a neutral hint so the
// orchestrator can skip cleanly.
type Extractor struct {
	provider   llm.Provider
	model      string
	maxQueries int
	logger     *log.Logger
}

func NewExtractor(provider llm.Provider, model string, maxQueries int) *Extractor {
	return &Extractor{
		provider:   provider,
		model:      model,
		maxQueries: maxQueries,
		logger:     log.New(log.Writer(), "[EXTRACTOR] ", log.LstdFlags),
	}
}

func (e *Extractor) Extract(ctx context.Context, text string) ExtractionResult {
	empty := ExtractionResult{Hint: HintEither}
	if strings.TrimSpace(text) == "" {
		return empty
	}
	if len(text) > maxExtractInputLen {
		text = text[:maxExtractInputLen]
	}

	prompt := fmt.Sprintf(extractionPrompt, e.maxQueries, text)
	out, err := e.provider.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.Options{
		Model:       e.model,
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		e.logger.Printf("extraction completion failed: %v", err)
		return empty
	}

	var parsed struct {
		Queries []struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		} `json:"queries"`
		Source string `json:"source"`
	}
	if err := llmjson.Unmarshal(out, &parsed); err != nil {
		e.logger.Printf("extraction response unparseable: %v", err)
		return empty
	}

	hint := parseHint(parsed.Source)
	result := ExtractionResult{Hint: hint}
	for _, q := range parsed.Queries {
		if len(result.Queries) >= e.maxQueries {
			break
		}
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		qh := parseHint(q.Source)
		if q.Source == "" {
			qh = hint
		}
		result.Queries = append(result.Queries, Query{Text: text, Hint: qh, Index: len(result.Queries)})
	}
	return result
}

func parseHint(s string) SourceHint {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "encyclopedic", "wiki", "wikipedia":
		return HintEncyclopedic
	case "web", "websearch", "web_search":
		return HintWeb
	default:
		return HintEither
	}
}
