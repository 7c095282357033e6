package illustrate

import (
	"context"
	"fmt"
	"log"
	"sync"

	"illustro/config"
	"illustro/internal/store"
	"illustro/models"
	searchmodels "illustro/tools/image_search/models"
)

// Renderer is the rendering collaborator. The pipeline signals loading
// state and hands over the committed annotation; it owns no layout
// concerns itself.
type Renderer interface {
	ShowLoading(messageID int)
	ClearLoading(messageID int)
	RenderAnnotation(messageID int, a models.Annotation) error
	// HasIllustration reports whether a visual element is already
	// materialized for the message, used by the restorer.
	HasIllustration(messageID int) bool
}

// Approver is the human-in-the-loop collaborator for confirm mode.
type Approver interface {
	PresentForApproval(ctx context.Context, c searchmodels.Candidate) (bool, error)
}

// Pipeline sequences extraction, aggregation and selection for one
// message and commits the outcome. It owns the eligibility and
// idempotency guards, including the per-message in-flight set.
type Pipeline struct {
	cfg        config.IllustrationConfig
	extractor  *Extractor
	aggregator *Aggregator
	selector   *Selector
	store      store.ChatStore
	renderer   Renderer
	approver   Approver
	logger     *log.Logger

	mu       sync.Mutex
	inFlight map[int]struct{}
}

func NewPipeline(cfg config.IllustrationConfig, extractor *Extractor, aggregator *Aggregator, selector *Selector, chatStore store.ChatStore, renderer Renderer, approver Approver) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		extractor:  extractor,
		aggregator: aggregator,
		selector:   selector,
		store:      chatStore,
		renderer:   renderer,
		approver:   approver,
		logger:     log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
		inFlight:   make(map[int]struct{}),
	}
}

// Run executes the pipeline for one message. It is safe to call
// concurrently for different messages; a second call for a message whose
// run is still in flight is rejected at the guard and performs no work.
// An error return always means StateFailed; the message stays eligible
// for a later manual retry since no annotation was written.
func (p *Pipeline) Run(ctx context.Context, msg models.Message) (State, error) {
	if !p.eligible(ctx, msg) {
		pipelineRuns.WithLabelValues(string(StateSkipped)).Inc()
		return StateSkipped, nil
	}
	if !p.acquire(msg.ID) {
		p.logger.Printf("message %d already in flight, rejecting", msg.ID)
		pipelineRuns.WithLabelValues(string(StateSkipped)).Inc()
		return StateSkipped, nil
	}
	defer p.release(msg.ID)

	state, err := p.runLocked(ctx, msg)
	pipelineRuns.WithLabelValues(string(state)).Inc()
	return state, err
}

// eligible is the Idle -> Eligible transition: feature on, not the end
// user's own message, long enough, and not yet annotated. The annotation
// check is the sole idempotency gate against committed work.
func (p *Pipeline) eligible(ctx context.Context, msg models.Message) bool {
	if !p.cfg.Enabled {
		return false
	}
	if msg.Role == models.RoleUser {
		return false
	}
	if len(msg.Text) < p.cfg.MinMessageLength {
		return false
	}
	if msg.Annotation != nil {
		return false
	}
	ann, err := p.store.GetAnnotation(ctx, msg.ID)
	if err != nil {
		p.logger.Printf("annotation lookup failed for message %d: %v", msg.ID, err)
		return false
	}
	return ann == nil
}

// acquire atomically checks and sets the in-flight marker. The
// annotation gate alone cannot stop two concurrent runs racing on the
// same not-yet-annotated message; this set can.
func (p *Pipeline) acquire(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[id]; ok {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *Pipeline) release(id int) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Pipeline) runLocked(ctx context.Context, msg models.Message) (state State, err error) {
	p.renderer.ShowLoading(msg.ID)
	loadingCleared := false
	clearLoading := func() {
		if !loadingCleared {
			p.renderer.ClearLoading(msg.ID)
			loadingCleared = true
		}
	}
	// the indicator must never outlive the run, whatever the exit path
	defer func() {
		if r := recover(); r != nil {
			state = StateFailed
			err = fmt.Errorf("pipeline panic for message %d: %v", msg.ID, r)
		}
		clearLoading()
	}()

	extraction := p.extractor.Extract(ctx, msg.Text)
	if len(extraction.Queries) == 0 {
		p.logger.Printf("message %d: no queries extracted, skipping", msg.ID)
		return StateSkipped, nil
	}

	pool := p.aggregator.Aggregate(ctx, extraction.Queries, extraction.Hint)
	if len(pool) == 0 {
		p.logger.Printf("message %d: empty candidate pool, skipping", msg.ID)
		return StateSkipped, nil
	}

	chosen := p.selector.Select(ctx, msg.Text, pool)
	if chosen == nil {
		p.logger.Printf("message %d: no suitable candidate, skipping", msg.ID)
		return StateSkipped, nil
	}

	if !p.cfg.AutoMode {
		clearLoading()
		if p.approver == nil {
			p.logger.Printf("message %d: confirm mode without approver, skipping", msg.ID)
			return StateSkipped, nil
		}
		ok, err := p.approver.PresentForApproval(ctx, *chosen)
		if err != nil {
			return StateFailed, fmt.Errorf("approval for message %d: %w", msg.ID, err)
		}
		if !ok {
			p.logger.Printf("message %d: candidate rejected by approver", msg.ID)
			return StateSkipped, nil
		}
	}

	ann := models.Annotation{
		URL:          chosen.URL,
		ThumbnailURL: chosen.ThumbnailURL,
		Query:        chosen.Query,
		Source:       chosen.Source,
		Title:        chosen.Title,
	}
	if err := p.store.SetAnnotation(ctx, msg.ID, ann); err != nil {
		return StateFailed, fmt.Errorf("persisting annotation for message %d: %w", msg.ID, err)
	}
	if err := p.renderer.RenderAnnotation(msg.ID, ann); err != nil {
		// the annotation is durable; rendering catches up on next restore
		p.logger.Printf("render failed for message %d: %v", msg.ID, err)
	}
	p.logger.Printf("message %d annotated with %s image %q", msg.ID, chosen.Source, chosen.URL)
	return StateAnnotated, nil
}
