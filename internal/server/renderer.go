package server

import (
	"sync"

	"illustro/models"
)

// RenderState is the headless rendering surface. Instead of drawing into
// a view it records, per message, whether a loading indicator is active
// and which annotation is materialized; clients poll it over the API.
type RenderState struct {
	mu       sync.RWMutex
	loading  map[int]bool
	rendered map[int]models.Annotation
}

func NewRenderState() *RenderState {
	return &RenderState{
		loading:  make(map[int]bool),
		rendered: make(map[int]models.Annotation),
	}
}

func (r *RenderState) ShowLoading(messageID int) {
	r.mu.Lock()
	r.loading[messageID] = true
	r.mu.Unlock()
}

func (r *RenderState) ClearLoading(messageID int) {
	r.mu.Lock()
	delete(r.loading, messageID)
	r.mu.Unlock()
}

func (r *RenderState) RenderAnnotation(messageID int, a models.Annotation) error {
	r.mu.Lock()
	r.rendered[messageID] = a
	r.mu.Unlock()
	return nil
}

func (r *RenderState) HasIllustration(messageID int) bool {
	r.mu.RLock()
	_, ok := r.rendered[messageID]
	r.mu.RUnlock()
	return ok
}

// Snapshot returns the render status for one message.
func (r *RenderState) Snapshot(messageID int) (loading bool, ann *models.Annotation) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.rendered[messageID]; ok {
		copied := a
		ann = &copied
	}
	return r.loading[messageID], ann
}
