package models

import (
	"errors"
	"time"
)

// ErrMessageNotFound is returned when a message id is not in the transcript
var ErrMessageNotFound = errors.New("message not found")

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Annotation is the single persisted image choice bound to a message.
// Once present the message is handled: the pipeline never re-runs for it
// and the annotation is never mutated.
type Annotation struct {
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Query        string    `json:"query"`
	Source       string    `json:"source"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Message is one transcript entry. ID is the message's stable position
// in the transcript. The pipeline only reads Role and Text and writes
// Annotation at most once.
type Message struct {
	ID         int         `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	Annotation *Annotation `json:"annotation,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}
