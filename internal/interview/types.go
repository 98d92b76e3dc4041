// Package interview defines the data model shared by the mock-interview
// session engine: the interview context, questions, answers, feedback,
// and the session record itself.
package interview

import (
	"fmt"
	"time"
)

// Round identifies the interview round being practiced.
type Round string

const (
	RoundManagerial Round = "managerial"
	RoundTechnical1 Round = "technical_round_1"
	RoundTechnical2 Round = "technical_round_2"
	RoundHR         Round = "hr"
)

// ParseRound validates a round string.
func ParseRound(s string) (Round, error) {
	switch Round(s) {
	case RoundManagerial, RoundTechnical1, RoundTechnical2, RoundHR:
		return Round(s), nil
	}
	return "", fmt.Errorf("unknown round %q", s)
}

// Level is the requested session difficulty.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
	LevelGod    Level = "god"
)

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelEasy, LevelMedium, LevelHard, LevelGod:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// Difficulty tags individual questions. Unlike Level it has no "god" value:
// god-level sessions produce hard questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DifficultyForLevel maps a session level to the single difficulty applied
// to every question in that session.
func DifficultyForLevel(l Level) Difficulty {
	switch l {
	case LevelEasy:
		return DifficultyEasy
	case LevelMedium:
		return DifficultyMedium
	default:
		// hard and god are label-only distinct; both grade as hard.
		return DifficultyHard
	}
}

// QuestionType classifies a question.
type QuestionType string

const (
	TypeBehavioral  QuestionType = "behavioral"
	TypeTechnical   QuestionType = "technical"
	TypeSituational QuestionType = "situational"
)

// Context is the immutable setup for one session. Once practice starts it
// must not be mutated.
type Context struct {
	JobTitle       string         `json:"job_title"`
	JobDescription string         `json:"job_description"`
	Round          Round          `json:"round"`
	Level          Level          `json:"level"`
	Skills         []string       `json:"skills,omitempty"`
	Resume         ResumeSnapshot `json:"resume"`
}

// Validate reports whether the context is complete enough to start practice.
func (c Context) Validate() error {
	if c.JobTitle == "" {
		return fmt.Errorf("job title is required")
	}
	if c.JobDescription == "" {
		return fmt.Errorf("job description is required")
	}
	if c.Resume.Empty() {
		return fmt.Errorf("a resume must be selected")
	}
	return nil
}

// ResumeSnapshot is a read-only copy of the candidate's resume taken when
// the session is configured. The engine never writes back to the provider.
type ResumeSnapshot struct {
	ID         string       `json:"id,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Text       string       `json:"text,omitempty"`
}

// Experience is one employment entry, most recent first.
type Experience struct {
	Company string `json:"company"`
	Title   string `json:"title,omitempty"`
	Years   string `json:"years,omitempty"`
}

// Empty reports whether the snapshot carries no usable resume data.
func (r ResumeSnapshot) Empty() bool {
	return r.ID == "" && r.Summary == "" && r.Text == "" && len(r.Experience) == 0
}

// Question is produced by either question source and never mutated after
// creation. IDs increase monotonically within a session.
type Question struct {
	ID         int          `json:"id"`
	Text       string       `json:"text"`
	Type       QuestionType `json:"type"`
	Difficulty Difficulty   `json:"difficulty"`
	Tips       []string     `json:"tips,omitempty"`
}

// Feedback is the graded assessment of a single answer.
type Feedback struct {
	Score        int      `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	SampleAnswer string   `json:"sample_answer"`
}

// Answer records what the candidate said (or typed) for one question.
// Feedback is attached after grading completes; Answers[i] always answers
// Questions[i].
type Answer struct {
	QuestionID      int       `json:"question_id"`
	Text            string    `json:"text"`
	DurationSeconds int       `json:"duration_seconds"`
	Skipped         bool      `json:"skipped,omitempty"`
	Feedback        *Feedback `json:"feedback,omitempty"`
}

// Mode distinguishes AI-sourced sessions from local fallback sessions.
type Mode string

const (
	ModeAI    Mode = "ai"
	ModeLocal Mode = "local"
)

// Status is the session lifecycle state as persisted.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Session is the single owned record of one practice run. The controller is
// its exclusive owner; ThreadID is shared only with the remote interview
// client and, once set, is never cleared mid-session.
type Session struct {
	ID           string     `json:"id"`
	Context      Context    `json:"context"`
	Mode         Mode       `json:"mode"`
	ThreadID     string     `json:"thread_id,omitempty"`
	Questions    []Question `json:"questions"`
	Answers      []Answer   `json:"answers"`
	OverallScore int        `json:"overall_score"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  time.Time  `json:"completed_at,omitempty"`
}

// OverallScore computes the mean of all present feedback scores, 0 when no
// answer carries feedback.
func OverallScore(answers []Answer) int {
	sum, n := 0, 0
	for _, a := range answers {
		if a.Feedback != nil {
			sum += a.Feedback.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
