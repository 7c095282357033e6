package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompleteSendsMessagesAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"choices": [{"message": {"content": "hello back"}}]}`)
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL, time.Second)
	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}}, Options{Model: "m", Temperature: 0.2, MaxTokens: 100})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("out = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "m" {
		t.Fatalf("model = %v", gotBody["model"])
	}
}

func TestCompleteVisionInlinesImagesWithLowDetail(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL    string `json:"url"`
					Detail string `json:"detail"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{\"selected\": 0}"}}]}`)
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL, time.Second)
	images := []InlineImage{
		{MIME: "image/png", Data: []byte{1, 2, 3}},
		{Data: []byte{4, 5, 6}}, // empty MIME falls back to jpeg
	}
	if _, err := c.CompleteVision(context.Background(), "pick one", images, Options{Model: "v"}); err != nil {
		t.Fatalf("vision: %v", err)
	}

	parts := gotBody.Messages[0].Content
	if len(parts) != 3 || parts[0].Type != "text" || parts[0].Text != "pick one" {
		t.Fatalf("parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("png data url = %s", parts[1].ImageURL.URL)
	}
	if !strings.HasPrefix(parts[2].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("fallback data url = %s", parts[2].ImageURL.URL)
	}
	if parts[1].ImageURL.Detail != "low" || parts[2].ImageURL.Detail != "low" {
		t.Fatalf("detail not low: %+v", parts)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL, time.Second)
	if _, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{Model: "m"}); err == nil {
		t.Fatalf("expected error")
	} else if !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient("", "http://unused.invalid", time.Second)
	if _, err := c.Complete(context.Background(), nil, Options{Model: "m"}); err == nil {
		t.Fatalf("expected missing-key error")
	}
}

func TestListModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data": [{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}]}`)
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL, time.Second)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 || models[0] != "gpt-4o" {
		t.Fatalf("models = %v", models)
	}
}
