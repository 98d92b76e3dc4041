package interviewer

import (
	"encoding/json"

	"github.com/prepflow/prepflow/internal/interview"
)

// Message is one turn of the remote conversation thread.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the wire format for all three actions. threadId is empty on
// start; message carries the candidate's latest answer on respond.
type request struct {
	Action           string            `json:"action"`
	ThreadID         string            `json:"threadId,omitempty"`
	Message          string            `json:"message,omitempty"`
	Messages         []Message         `json:"messages"`
	InterviewContext interview.Context `json:"interviewContext"`
}

// TurnResponse is returned by start and respond: the next question plus the
// updated thread state.
type TurnResponse struct {
	ThreadID       string    `json:"threadId"`
	Messages       []Message `json:"messages"`
	Question       string    `json:"question"`
	QuestionType   string    `json:"questionType"`
	QuestionNumber int       `json:"questionNumber"`
	IsComplete     bool      `json:"isComplete"`
}

// Evaluation is the free-form final assessment returned by end. Its shape is
// service-defined; the engine stores it opaquely and only reads the fields
// it recognizes.
type Evaluation struct {
	Summary string          `json:"summary,omitempty"`
	Score   int             `json:"score,omitempty"`
	Raw     json.RawMessage `json:"-"`
}
