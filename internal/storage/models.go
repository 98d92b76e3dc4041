package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is the immutable persisted form of a completed practice
// session. It is written exactly once, on finalize; no partial writes occur.
type SessionRecord struct {
	ID             string
	AccountID      string
	CreatedAt      time.Time
	Mode           string
	ThreadID       string
	ContextJSON    string
	QuestionsJSON  string
	AnswersJSON    string
	EvaluationJSON string // free-form remote evaluation, empty in local mode
	OverallScore   int
	Status         string
}

// ResumeRecord is a stored resume snapshot the engine reads when seeding an
// interview context. The engine never updates these.
type ResumeRecord struct {
	ID        string
	AccountID string
	Name      string
	Text      string
	Source    string // "text", "pdf"
	CreatedAt time.Time
}
