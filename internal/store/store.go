package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"illustro/config"
	"illustro/models"
)

// ChatStore owns the transcript. The pipeline reads messages and writes
// each annotation at most once; rendering state is never stored here, it
// is always derived from the persisted annotations on load.
type ChatStore interface {
	AppendMessage(ctx context.Context, role models.Role, text string) (models.Message, error)
	GetMessage(ctx context.Context, id int) (models.Message, error)
	ListMessages(ctx context.Context) ([]models.Message, error)
	GetAnnotation(ctx context.Context, id int) (*models.Annotation, error)
	SetAnnotation(ctx context.Context, id int, a models.Annotation) error
}

// New selects a store backend from configuration. Memory is the default
// and carries no persistence across restarts.
func New(ctx context.Context, cfg config.StorageConfig) (ChatStore, error) {
	switch cfg.Backend {
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "", "memory":
		log.Printf("[STORE] using in-memory chat store")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// MemoryStore is a transcript held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[int]models.Message
	nextID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[int]models.Message), nextID: 1}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, role models.Role, text string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{ID: s.nextID, Role: role, Text: text}
	s.messages[msg.ID] = msg
	s.nextID++
	return msg, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id int) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, models.ErrMessageNotFound
	}
	return msg, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetAnnotation(ctx context.Context, id int) (*models.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	return msg.Annotation, nil
}

func (s *MemoryStore) SetAnnotation(ctx context.Context, id int, a models.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return models.ErrMessageNotFound
	}
	if msg.Annotation != nil {
		// annotations move absent to present exactly once
		return nil
	}
	msg.Annotation = &a
	s.messages[id] = msg
	return nil
}
