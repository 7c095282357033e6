package llm

import "context"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InlineImage is raw image data inlined into a multimodal request as a
// base64 data URL. MIME should be a concrete raster type; empty falls
// back to image/jpeg.
type InlineImage struct {
	MIME string
	Data []byte
}

// Options tune a single completion call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider is the completion backend surface the pipeline depends on:
// text-only chat completions, multimodal completions with inline images,
// and model discovery.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	CompleteVision(ctx context.Context, prompt string, images []InlineImage, opts Options) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}
