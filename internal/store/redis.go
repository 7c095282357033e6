package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"illustro/config"
	"illustro/models"
)

const (
	messageKeyPrefix = "msg:"
	messageCountKey  = "msg:count"
)

// RedisStore persists the transcript in Redis, one JSON document per
// message keyed by position, plus a counter for id assignment.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, role models.Role, text string) (models.Message, error) {
	n, err := s.client.Incr(ctx, messageCountKey).Result()
	if err != nil {
		return models.Message{}, err
	}
	msg := models.Message{ID: int(n), Role: role, Text: text, CreatedAt: time.Now()}
	if err := s.save(ctx, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *RedisStore) GetMessage(ctx context.Context, id int) (models.Message, error) {
	val, err := s.client.Get(ctx, messageKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Message{}, models.ErrMessageNotFound
		}
		return models.Message{}, err
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(val), &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *RedisStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	n, err := s.client.Get(ctx, messageCountKey).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]models.Message, 0, n)
	for id := 1; id <= n; id++ {
		msg, err := s.GetMessage(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrMessageNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) GetAnnotation(ctx context.Context, id int) (*models.Annotation, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return msg.Annotation, nil
}

func (s *RedisStore) SetAnnotation(ctx context.Context, id int, a models.Annotation) error {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if msg.Annotation != nil {
		return nil
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	msg.Annotation = &a
	return s.save(ctx, msg)
}

func (s *RedisStore) save(ctx context.Context, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, messageKey(msg.ID), data, 0).Err()
}

func messageKey(id int) string { return fmt.Sprintf("%s%d", messageKeyPrefix, id) }
