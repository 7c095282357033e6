package store

import (
	"context"
	"errors"
	"testing"

	"illustro/config"
	"illustro/models"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m1, err := s.AppendMessage(ctx, models.RoleUser, "hello")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	m2, _ := s.AppendMessage(ctx, models.RoleAssistant, "hi there")
	if m1.ID != 1 || m2.ID != 2 {
		t.Fatalf("ids = %d, %d", m1.ID, m2.ID)
	}

	list, err := s.ListMessages(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("transcript order broken: %+v", list)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetMessage(context.Background(), 99); !errors.Is(err, models.ErrMessageNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.GetAnnotation(context.Background(), 99); !errors.Is(err, models.ErrMessageNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryStoreAnnotationWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m, _ := s.AppendMessage(ctx, models.RoleAssistant, "text")

	ann, err := s.GetAnnotation(ctx, m.ID)
	if err != nil || ann != nil {
		t.Fatalf("fresh message: (%+v, %v)", ann, err)
	}

	if err := s.SetAnnotation(ctx, m.ID, models.Annotation{URL: "first"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	// a second write is a silent no-op, the first annotation stands
	if err := s.SetAnnotation(ctx, m.ID, models.Annotation{URL: "second"}); err != nil {
		t.Fatalf("second set: %v", err)
	}
	ann, _ = s.GetAnnotation(ctx, m.ID)
	if ann == nil || ann.URL != "first" {
		t.Fatalf("annotation = %+v", ann)
	}

	msg, _ := s.GetMessage(ctx, m.ID)
	if msg.Annotation == nil || msg.Annotation.URL != "first" {
		t.Fatalf("message annotation = %+v", msg.Annotation)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, config.StorageConfig{Backend: "memory"}); err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, err := New(ctx, config.StorageConfig{}); err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, err := New(ctx, config.StorageConfig{Backend: "cassandra"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
