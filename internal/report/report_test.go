package report

import (
	"testing"

	"github.com/prepflow/prepflow/internal/interview"
)

func fb(score int, strengths, improvements []string) *interview.Feedback {
	return &interview.Feedback{Score: score, Strengths: strengths, Improvements: improvements}
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, nil)

	if r.OverallScore != 0 {
		t.Errorf("overall score = %d, want 0", r.OverallScore)
	}
	if r.StrongCount+r.BorderlineCount+r.WeakCount != 0 {
		t.Error("counts should be zero on empty input")
	}
	if len(r.ByType) != 0 || len(r.ByDifficulty) != 0 {
		t.Error("breakdowns should be empty on empty input")
	}
}

func TestBuildOverallMean(t *testing.T) {
	questions := []interview.Question{
		{ID: 1, Type: interview.TypeBehavioral, Difficulty: interview.DifficultyMedium},
		{ID: 2, Type: interview.TypeTechnical, Difficulty: interview.DifficultyMedium},
		{ID: 3, Type: interview.TypeTechnical, Difficulty: interview.DifficultyHard},
	}
	answers := []interview.Answer{
		{QuestionID: 1, Feedback: fb(80, nil, nil)},
		{QuestionID: 2, Feedback: fb(60, nil, nil)},
		{QuestionID: 3, Feedback: fb(40, nil, nil)},
	}

	r := Build(questions, answers)

	if r.OverallScore != 60 {
		t.Errorf("overall = %d, want 60", r.OverallScore)
	}
	if r.StrongCount != 1 || r.BorderlineCount != 1 || r.WeakCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", r.StrongCount, r.BorderlineCount, r.WeakCount)
	}
	if got := r.ByType[interview.TypeTechnical]; got != 50 {
		t.Errorf("technical mean = %d, want 50", got)
	}
	if got := r.ByType[interview.TypeBehavioral]; got != 80 {
		t.Errorf("behavioral mean = %d, want 80", got)
	}
	if got := r.ByDifficulty[interview.DifficultyMedium]; got != 70 {
		t.Errorf("medium mean = %d, want 70", got)
	}
	if got := r.ByDifficulty[interview.DifficultyHard]; got != 40 {
		t.Errorf("hard mean = %d, want 40", got)
	}
}

// TestBuildPartialSession mirrors ending early after 3 of 8 questions: only
// the answered questions may influence the breakdowns.
func TestBuildPartialSession(t *testing.T) {
	questions := make([]interview.Question, 8)
	for i := range questions {
		questions[i] = interview.Question{ID: i + 1, Type: interview.TypeTechnical, Difficulty: interview.DifficultyEasy}
	}
	// Question 4+ are situational/hard; they were never answered.
	for i := 3; i < 8; i++ {
		questions[i].Type = interview.TypeSituational
		questions[i].Difficulty = interview.DifficultyHard
	}

	answers := []interview.Answer{
		{QuestionID: 1, Feedback: fb(70, nil, nil)},
		{QuestionID: 2, Feedback: fb(80, nil, nil)},
		{QuestionID: 3, Feedback: fb(90, nil, nil)},
	}

	r := Build(questions, answers)

	if r.Answered != 3 || r.QuestionsAsked != 8 {
		t.Errorf("answered/asked = %d/%d, want 3/8", r.Answered, r.QuestionsAsked)
	}
	if _, ok := r.ByType[interview.TypeSituational]; ok {
		t.Error("unanswered situational questions leaked into the type breakdown")
	}
	if _, ok := r.ByDifficulty[interview.DifficultyHard]; ok {
		t.Error("unanswered hard questions leaked into the difficulty breakdown")
	}
	if got := r.ByType[interview.TypeTechnical]; got != 80 {
		t.Errorf("technical mean = %d, want 80", got)
	}
}

func TestBuildDeduplicatesAndTruncatesHighlights(t *testing.T) {
	questions := make([]interview.Question, 7)
	answers := make([]interview.Answer, 7)
	for i := range questions {
		questions[i] = interview.Question{ID: i + 1, Type: interview.TypeBehavioral, Difficulty: interview.DifficultyEasy}
		answers[i] = interview.Answer{
			QuestionID: i + 1,
			Feedback: fb(60,
				[]string{"repeated strength", "strength " + string(rune('A'+i))},
				[]string{"repeated improvement"},
			),
		}
	}

	r := Build(questions, answers)

	if len(r.Strengths) != maxHighlights {
		t.Errorf("strengths truncated to %d, want %d", len(r.Strengths), maxHighlights)
	}
	if r.Strengths[0] != "repeated strength" {
		t.Errorf("first strength = %q, want the deduplicated common one", r.Strengths[0])
	}
	if len(r.Improvements) != 1 {
		t.Errorf("improvements = %v, want single deduplicated entry", r.Improvements)
	}
}

func TestBuildSkippedAnswerWithoutFeedback(t *testing.T) {
	questions := []interview.Question{
		{ID: 1, Type: interview.TypeBehavioral, Difficulty: interview.DifficultyEasy},
		{ID: 2, Type: interview.TypeBehavioral, Difficulty: interview.DifficultyEasy},
	}
	answers := []interview.Answer{
		{QuestionID: 1, Feedback: fb(90, nil, nil)},
		{QuestionID: 2, Skipped: true}, // grading never attached feedback
	}

	r := Build(questions, answers)

	if r.Answered != 2 {
		t.Errorf("answered = %d, want 2", r.Answered)
	}
	if r.OverallScore != 90 {
		t.Errorf("overall = %d; ungraded answers must not drag the mean", r.OverallScore)
	}
}
