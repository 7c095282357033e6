package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"illustro/models"
)

func setupPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &PostgresStore{db: db}, mock, func() { db.Close() }
}

func TestPostgresAppendMessage(t *testing.T) {
	s, mock, cleanup := setupPostgres(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs("assistant", "hello world").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))

	msg, err := s.AppendMessage(context.Background(), models.RoleAssistant, "hello world")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.ID != 7 || msg.Role != models.RoleAssistant {
		t.Fatalf("message = %+v", msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetMessageWithAnnotation(t *testing.T) {
	s, mock, cleanup := setupPostgres(t)
	defer cleanup()

	ann, _ := json.Marshal(models.Annotation{URL: "https://img.example/1.jpg", Source: "wikipedia"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, role, text, annotation, created_at FROM messages WHERE id = $1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "text", "annotation", "created_at"}).
			AddRow(3, "assistant", "text", ann, time.Now()))

	msg, err := s.GetMessage(context.Background(), 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if msg.Annotation == nil || msg.Annotation.URL != "https://img.example/1.jpg" {
		t.Fatalf("annotation = %+v", msg.Annotation)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetMessageMissing(t *testing.T) {
	s, mock, cleanup := setupPostgres(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, role, text, annotation, created_at FROM messages WHERE id = $1")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "text", "annotation", "created_at"}))

	if _, err := s.GetMessage(context.Background(), 99); !errors.Is(err, models.ErrMessageNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestPostgresSetAnnotationGuardsExisting(t *testing.T) {
	s, mock, cleanup := setupPostgres(t)
	defer cleanup()

	// the guarded UPDATE touches no row because an annotation exists,
	// then the existence probe confirms the message itself is there
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET annotation = $2 WHERE id = $1 AND annotation IS NULL")).
		WithArgs(3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := s.SetAnnotation(context.Background(), 3, models.Annotation{URL: "new"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresSetAnnotationMissingMessage(t *testing.T) {
	s, mock, cleanup := setupPostgres(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages SET annotation = $2 WHERE id = $1 AND annotation IS NULL")).
		WithArgs(42, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if err := s.SetAnnotation(context.Background(), 42, models.Annotation{URL: "x"}); !errors.Is(err, models.ErrMessageNotFound) {
		t.Fatalf("err = %v", err)
	}
}
