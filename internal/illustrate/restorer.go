package illustrate

import (
	"context"
	"log"
	"time"

	"illustro/internal/store"
)

// Restorer replays persisted annotations into the renderer after a
// transcript is loaded, so restored conversations show their
// illustrations without re-running any search or model call.
type Restorer struct {
	store       store.ChatStore
	renderer    Renderer
	settleDelay time.Duration
	logger      *log.Logger
}

func NewRestorer(chatStore store.ChatStore, renderer Renderer, settleDelay time.Duration) *Restorer {
	return &Restorer{
		store:       chatStore,
		renderer:    renderer,
		settleDelay: settleDelay,
		logger:      log.New(log.Writer(), "[RESTORE] ", log.LstdFlags),
	}
}

// Restore waits for the transcript view to settle, then walks messages
// in transcript order and renders every stored annotation that is not
// already materialized. Per-message render failures are logged and
// skipped; one broken image URL must not abort the rest of the replay.
func (r *Restorer) Restore(ctx context.Context) (int, error) {
	if r.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(r.settleDelay):
		}
	}

	messages, err := r.store.ListMessages(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return restored, ctx.Err()
		}
		if msg.Annotation == nil {
			continue
		}
		if r.renderer.HasIllustration(msg.ID) {
			continue
		}
		if err := r.renderer.RenderAnnotation(msg.ID, *msg.Annotation); err != nil {
			r.logger.Printf("restore render failed for message %d: %v", msg.ID, err)
			continue
		}
		restored++
	}
	if restored > 0 {
		r.logger.Printf("restored %d annotation(s) out of %d message(s)", restored, len(messages))
	}
	return restored, nil
}
