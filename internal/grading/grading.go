// Package grading scores interview answers. A remote grading service is
// preferred; the heuristic LocalGrader is the deterministic fallback.
package grading

import (
	"context"
	"log/slog"

	"github.com/prepflow/prepflow/internal/interview"
)

// Grader scores a single answer against its question.
type Grader interface {
	Grade(ctx context.Context, q interview.Question, answer string, ictx interview.Context) (interview.Feedback, error)
}

// FallbackGrader tries the primary grader and falls back to the secondary on
// any error. The secondary is expected to be infallible (LocalGrader).
type FallbackGrader struct {
	Primary   Grader
	Secondary Grader
}

func (f *FallbackGrader) Grade(ctx context.Context, q interview.Question, answer string, ictx interview.Context) (interview.Feedback, error) {
	if f.Primary != nil {
		fb, err := f.Primary.Grade(ctx, q, answer, ictx)
		if err == nil {
			return fb, nil
		}
		slog.Warn("remote grading failed, using local grader", "question_id", q.ID, "error", err)
	}
	return f.Secondary.Grade(ctx, q, answer, ictx)
}
