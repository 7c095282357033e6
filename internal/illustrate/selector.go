package illustrate

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"illustro/internal/httpx"
	"illustro/internal/llm"
	"illustro/internal/llmjson"
	"illustro/tools/image_search/models"
)

const (
	// maxSelectorCandidates caps how many pool entries are shown to the
	// vision model in one call.
	maxSelectorCandidates = 8
	// maxSelectorTextLen bounds the message excerpt in the prompt.
	maxSelectorTextLen = 800
	// maxThumbnailBytes bounds each thumbnail download.
	maxThumbnailBytes = 4 << 20
)

const selectionPrompt = `A chat message needs one illustrative image. Below is the
message excerpt and %d numbered candidate images, in order.

MESSAGE:
%s

CANDIDATES:
%s

Pick the single best candidate by these criteria, in priority order:
1. topical relevance to the message
2. match with the message's mood and context
3. image quality (sharp, well composed, not a screenshot of text)
4. reject advertising, watermarks, and portraits of real people

Respond ONLY with JSON: {"selected": <candidate number>, "reason": "<short reason>"}.
Use -1 for "selected" if no candidate is suitable.`

// Selector fetches candidate thumbnails, asks a vision-capable model for
// a verdict, and returns one candidate or nil for "none suitable". It
// never returns an error: model transport failures fail open to the
// pool's first candidate.
type Selector struct {
	provider llm.Provider
	model    string
	http     *httpx.Client
	logger   *log.Logger
}

func NewSelector(provider llm.Provider, model string, httpClient *httpx.Client) *Selector {
	return &Selector{
		provider: provider,
		model:    model,
		http:     httpClient,
		logger:   log.New(log.Writer(), "[SELECTOR] ", log.LstdFlags),
	}
}

func (s *Selector) Select(ctx context.Context, messageText string, pool []models.Candidate) *models.Candidate {
	if len(pool) == 0 {
		return nil
	}
	if len(pool) == 1 {
		// deterministic and free: no reason to consult the model
		selections.WithLabelValues("single").Inc()
		return &pool[0]
	}

	candidates := pool
	if len(candidates) > maxSelectorCandidates {
		candidates = candidates[:maxSelectorCandidates]
	}

	images, kept := s.fetchThumbnails(ctx, candidates)
	if len(kept) == 0 {
		// degraded but deterministic: better than silently dropping the message
		s.logger.Printf("all %d thumbnail fetches failed, falling back to first candidate", len(candidates))
		selections.WithLabelValues("degraded").Inc()
		return &pool[0]
	}

	prompt := s.buildPrompt(messageText, candidates, kept)
	out, err := s.provider.CompleteVision(ctx, prompt, images, llm.Options{
		Model:     s.model,
		MaxTokens: 300,
	})
	if err != nil {
		s.logger.Printf("vision completion failed, failing open to first candidate: %v", err)
		selections.WithLabelValues("fail_open").Inc()
		return &pool[0]
	}

	idx, ok := parseVerdict(out)
	if !ok {
		s.logger.Printf("selection response unparseable: %.120s", out)
		selections.WithLabelValues("none").Inc()
		return nil
	}
	if idx < 0 || idx >= len(kept) {
		// out of range means "nothing suitable", never a substituted pick
		selections.WithLabelValues("none").Inc()
		return nil
	}
	selections.WithLabelValues("chosen").Inc()
	return &candidates[kept[idx]]
}

// fetchThumbnails downloads candidate thumbnails concurrently. Failures
// are independent: a failed fetch drops only that candidate. Output
// order follows the original candidate order, not completion order.
// kept maps the surviving image positions back to candidate indices.
func (s *Selector) fetchThumbnails(ctx context.Context, candidates []models.Candidate) ([]llm.InlineImage, []int) {
	fetched := make([]*llm.InlineImage, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c models.Candidate) {
			defer wg.Done()
			url := c.ThumbnailURL
			if url == "" {
				url = c.URL
			}
			data, err := s.http.GetBytes(ctx, url, maxThumbnailBytes)
			if err != nil {
				thumbnailFailures.Inc()
				s.logger.Printf("thumbnail fetch failed for %s: %v", url, err)
				return
			}
			fetched[i] = &llm.InlineImage{MIME: sniffImageMIME(data), Data: data}
		}(i, c)
	}
	wg.Wait()

	var images []llm.InlineImage
	var kept []int
	for i, img := range fetched {
		if img == nil {
			continue
		}
		images = append(images, *img)
		kept = append(kept, i)
	}
	return images, kept
}

func (s *Selector) buildPrompt(messageText string, candidates []models.Candidate, kept []int) string {
	text := messageText
	if len(text) > maxSelectorTextLen {
		text = text[:maxSelectorTextLen]
	}
	var list strings.Builder
	for n, idx := range kept {
		c := candidates[idx]
		fmt.Fprintf(&list, "%d: %s (source: %s", n, c.Title, c.Source)
		if c.Domain != "" {
			fmt.Fprintf(&list, ", %s", c.Domain)
		}
		list.WriteString(")\n")
	}
	return fmt.Sprintf(selectionPrompt, len(kept), text, list.String())
}

// parseVerdict reads {"selected": i, ...} tolerantly; a truncated
// response still yields the index via the narrow field extraction.
func parseVerdict(out string) (int, bool) {
	var parsed struct {
		Selected *int   `json:"selected"`
		Reason   string `json:"reason"`
	}
	if err := llmjson.Unmarshal(out, &parsed); err == nil && parsed.Selected != nil {
		return *parsed.Selected, true
	}
	return llmjson.IntField(out, "selected")
}

func sniffImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}
