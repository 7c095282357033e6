package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"illustro/config"
	"illustro/models"
)

// PostgresStore persists the transcript in Postgres. Annotations are
// stored as a JSONB column next to the message row so reads stay a
// single query.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, role models.Role, text string) (models.Message, error) {
	var msg models.Message
	msg.Role = role
	msg.Text = text
	err := s.db.QueryRowContext(ctx, `
INSERT INTO messages (role, text, created_at)
VALUES ($1, $2, NOW())
RETURNING id, created_at`, string(role), text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id int) (models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, role, text, annotation, created_at FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (s *PostgresStore) ListMessages(ctx context.Context) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, text, annotation, created_at FROM messages ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAnnotation(ctx context.Context, id int) (*models.Annotation, error) {
	var annB []byte
	err := s.db.QueryRowContext(ctx, `SELECT annotation FROM messages WHERE id = $1`, id).Scan(&annB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(annB) == 0 {
		return nil, nil
	}
	var a models.Annotation
	if err := json.Unmarshal(annB, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAnnotation writes the annotation only when none is present yet; a
// second write for the same message is a no-op, keeping the
// absent-to-present lifecycle one way.
func (s *PostgresStore) SetAnnotation(ctx context.Context, id int, a models.Annotation) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET annotation = $2 WHERE id = $1 AND annotation IS NULL`, id, b)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists); err == nil && !exists {
			return models.ErrMessageNotFound
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg  models.Message
		role string
		annB []byte
	)
	if err := row.Scan(&msg.ID, &role, &msg.Text, &annB, &msg.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, models.ErrMessageNotFound
		}
		return models.Message{}, err
	}
	msg.Role = models.Role(role)
	if len(annB) > 0 {
		var a models.Annotation
		if err := json.Unmarshal(annB, &a); err != nil {
			return models.Message{}, err
		}
		msg.Annotation = &a
	}
	return msg, nil
}
