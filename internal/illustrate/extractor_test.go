package illustrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"illustro/internal/llm"
)

// stubProvider is the shared completion stub for this package's tests.
type stubProvider struct {
	mu            sync.Mutex
	completeOut   string
	completeErr   error
	visionOut     string
	visionErr     error
	completeCalls int
	visionCalls   int
	lastPrompt    string
	lastImages    int

	// when set, Complete signals started and blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (s *stubProvider) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	s.mu.Lock()
	s.completeCalls++
	if len(messages) > 0 {
		s.lastPrompt = messages[len(messages)-1].Content
	}
	started, release := s.started, s.release
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}
	return s.completeOut, s.completeErr
}

func (s *stubProvider) CompleteVision(ctx context.Context, prompt string, images []llm.InlineImage, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visionCalls++
	s.lastPrompt = prompt
	s.lastImages = len(images)
	return s.visionOut, s.visionErr
}

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"stub"}, nil
}

func (s *stubProvider) calls() (complete, vision int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls, s.visionCalls
}

func TestExtractParsesQueriesAndHints(t *testing.T) {
	p := &stubProvider{completeOut: `{"queries": [
		{"text": "golden gate bridge", "source": "encyclopedic"},
		{"text": "bridge at sunset", "source": "web"},
		{"text": "suspension bridge", "source": ""}
	], "source": "encyclopedic"}`}
	e := NewExtractor(p, "m", 5)

	res := e.Extract(context.Background(), "We talked about the Golden Gate Bridge at length.")
	if res.Hint != HintEncyclopedic {
		t.Fatalf("hint = %s", res.Hint)
	}
	if len(res.Queries) != 3 {
		t.Fatalf("len = %d, want 3", len(res.Queries))
	}
	if res.Queries[0].Hint != HintEncyclopedic || res.Queries[1].Hint != HintWeb {
		t.Fatalf("per-query hints wrong: %+v", res.Queries)
	}
	// empty source inherits the message-level hint
	if res.Queries[2].Hint != HintEncyclopedic {
		t.Fatalf("inherited hint = %s", res.Queries[2].Hint)
	}
	if res.Queries[1].Index != 1 {
		t.Fatalf("index = %d", res.Queries[1].Index)
	}
}

func TestExtractCapsQueryCount(t *testing.T) {
	p := &stubProvider{completeOut: `{"queries": [
		{"text": "a"}, {"text": "b"}, {"text": "c"}, {"text": "d"}
	], "source": "web"}`}
	e := NewExtractor(p, "m", 2)
	res := e.Extract(context.Background(), strings.Repeat("words ", 30))
	if len(res.Queries) != 2 {
		t.Fatalf("len = %d, want 2", len(res.Queries))
	}
}

func TestExtractTruncatesLongInput(t *testing.T) {
	p := &stubProvider{completeOut: `{"queries": [{"text": "a"}], "source": "either"}`}
	e := NewExtractor(p, "m", 3)
	e.Extract(context.Background(), strings.Repeat("x", maxExtractInputLen+500))
	if len(p.lastPrompt) > maxExtractInputLen+len(extractionPrompt)+100 {
		t.Fatalf("prompt not truncated: %d chars", len(p.lastPrompt))
	}
}

func TestExtractDegradesOnTransportError(t *testing.T) {
	p := &stubProvider{completeErr: errors.New("boom")}
	e := NewExtractor(p, "m", 3)
	res := e.Extract(context.Background(), "long enough message text for extraction")
	if len(res.Queries) != 0 || res.Hint != HintEither {
		t.Fatalf("expected empty neutral result, got %+v", res)
	}
}

func TestExtractDegradesOnGarbage(t *testing.T) {
	p := &stubProvider{completeOut: "I could not find anything relevant, sorry!"}
	e := NewExtractor(p, "m", 3)
	res := e.Extract(context.Background(), "long enough message text for extraction")
	if len(res.Queries) != 0 {
		t.Fatalf("expected no queries, got %+v", res.Queries)
	}
}

func TestExtractEmptyText(t *testing.T) {
	p := &stubProvider{}
	e := NewExtractor(p, "m", 3)
	res := e.Extract(context.Background(), "   ")
	if c, _ := p.calls(); c != 0 {
		t.Fatalf("expected no completion call")
	}
	if len(res.Queries) != 0 {
		t.Fatalf("expected no queries")
	}
}

func TestParseHint(t *testing.T) {
	cases := map[string]SourceHint{
		"encyclopedic": HintEncyclopedic,
		"Wikipedia":    HintEncyclopedic,
		"web":          HintWeb,
		"either":       HintEither,
		"":             HintEither,
		"nonsense":     HintEither,
	}
	for in, want := range cases {
		if got := parseHint(in); got != want {
			t.Fatalf("parseHint(%q) = %s, want %s", in, got, want)
		}
	}
}
