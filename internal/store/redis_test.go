package store

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"illustro/config"
	"illustro/models"
)

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	s, err := NewRedisStore(context.Background(), config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)

	m1, err := s.AppendMessage(ctx, models.RoleUser, "hello")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	m2, _ := s.AppendMessage(ctx, models.RoleAssistant, "hi there")
	if m1.ID != 1 || m2.ID != 2 {
		t.Fatalf("ids = %d, %d", m1.ID, m2.ID)
	}

	got, err := s.GetMessage(ctx, m2.ID)
	if err != nil || got.Text != "hi there" {
		t.Fatalf("get: (%+v, %v)", got, err)
	}

	list, err := s.ListMessages(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: (%d, %v)", len(list), err)
	}
	if list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("order: %+v", list)
	}
}

func TestRedisStoreAnnotationWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)
	m, _ := s.AppendMessage(ctx, models.RoleAssistant, "text")

	if err := s.SetAnnotation(ctx, m.ID, models.Annotation{URL: "first"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetAnnotation(ctx, m.ID, models.Annotation{URL: "second"}); err != nil {
		t.Fatalf("second set: %v", err)
	}
	ann, err := s.GetAnnotation(ctx, m.ID)
	if err != nil || ann == nil || ann.URL != "first" {
		t.Fatalf("annotation: (%+v, %v)", ann, err)
	}
}

func TestRedisStoreMissingMessage(t *testing.T) {
	s := setupRedis(t)
	if _, err := s.GetMessage(context.Background(), 7); err != models.ErrMessageNotFound {
		t.Fatalf("err = %v", err)
	}
	if err := s.SetAnnotation(context.Background(), 7, models.Annotation{}); err != models.ErrMessageNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestRedisStoreEmptyList(t *testing.T) {
	s := setupRedis(t)
	list, err := s.ListMessages(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("got (%d, %v)", len(list), err)
	}
}
