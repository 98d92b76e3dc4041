// Package report rolls a session's scored answers up into the review-screen
// summary: overall and partitioned means, answer-quality counts, and the
// deduplicated coaching highlights.
package report

import "github.com/prepflow/prepflow/internal/interview"

// Thresholds for classifying a graded answer.
const (
	strongScore     = 70
	borderlineScore = 50
)

// maxHighlights bounds the strengths/improvements lists shown on the report.
const maxHighlights = 5

// Report is the aggregated result of one practice session.
type Report struct {
	OverallScore    int                                `json:"overall_score"`
	ByType          map[interview.QuestionType]int     `json:"by_type"`
	ByDifficulty    map[interview.Difficulty]int       `json:"by_difficulty"`
	StrongCount     int                                `json:"strong_count"`
	BorderlineCount int                                `json:"borderline_count"`
	WeakCount       int                                `json:"weak_count"`
	Strengths       []string                           `json:"strengths"`
	Improvements    []string                           `json:"improvements"`
	QuestionsAsked  int                                `json:"questions_asked"`
	Answered        int                                `json:"answered"`
}

// Build aggregates answers against their questions. Answers are index-aligned
// with questions; questions beyond len(answers) were never reached and do not
// influence any breakdown. Pure: no input is mutated.
func Build(questions []interview.Question, answers []interview.Answer) Report {
	r := Report{
		OverallScore: interview.OverallScore(answers),
		ByType:       make(map[interview.QuestionType]int),
		ByDifficulty: make(map[interview.Difficulty]int),
	}

	typeSums := make(map[interview.QuestionType][2]int) // sum, count
	diffSums := make(map[interview.Difficulty][2]int)
	seenStrength := make(map[string]bool)
	seenImprovement := make(map[string]bool)

	for i, a := range answers {
		if i >= len(questions) {
			break
		}
		r.Answered++
		if a.Feedback == nil {
			continue
		}

		q := questions[i]
		score := a.Feedback.Score

		ts := typeSums[q.Type]
		typeSums[q.Type] = [2]int{ts[0] + score, ts[1] + 1}
		ds := diffSums[q.Difficulty]
		diffSums[q.Difficulty] = [2]int{ds[0] + score, ds[1] + 1}

		switch {
		case score >= strongScore:
			r.StrongCount++
		case score >= borderlineScore:
			r.BorderlineCount++
		default:
			r.WeakCount++
		}

		for _, s := range a.Feedback.Strengths {
			if !seenStrength[s] {
				seenStrength[s] = true
				r.Strengths = append(r.Strengths, s)
			}
		}
		for _, s := range a.Feedback.Improvements {
			if !seenImprovement[s] {
				seenImprovement[s] = true
				r.Improvements = append(r.Improvements, s)
			}
		}
	}

	for typ, sc := range typeSums {
		r.ByType[typ] = sc[0] / sc[1]
	}
	for diff, sc := range diffSums {
		r.ByDifficulty[diff] = sc[0] / sc[1]
	}

	if len(r.Strengths) > maxHighlights {
		r.Strengths = r.Strengths[:maxHighlights]
	}
	if len(r.Improvements) > maxHighlights {
		r.Improvements = r.Improvements[:maxHighlights]
	}

	r.QuestionsAsked = len(questions)
	return r
}
