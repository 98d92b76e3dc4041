package grading

import (
	"context"
	"strings"
	"unicode"

	"github.com/prepflow/prepflow/internal/interview"
)

const (
	baseScore = 50
	maxScore  = 95

	shortAnswerWords = 30
	longAnswerWords  = 50
)

// Keywords that indicate the answer is grounded in concrete experience.
var evidenceKeywords = []string{"example", "project", "team"}

// LocalGrader scores answers with a fixed rule set. Every rule contributes
// either a strength (when triggered) or an improvement (when not), so the
// feedback catalog is closed and the score is reproducible.
type LocalGrader struct{}

// NewLocalGrader returns the heuristic grader.
func NewLocalGrader() *LocalGrader {
	return &LocalGrader{}
}

// Grade never fails; the error return exists only to satisfy Grader.
func (g *LocalGrader) Grade(_ context.Context, q interview.Question, answer string, _ interview.Context) (interview.Feedback, error) {
	words := len(strings.Fields(answer))
	lower := strings.ToLower(answer)

	score := baseScore
	var strengths, improvements []string

	if words > shortAnswerWords {
		score += 10
		strengths = append(strengths, "Your answer has good depth and detail")
	} else {
		improvements = append(improvements, "Expand your answer with more detail and context")
	}

	if containsAnyKeyword(lower, evidenceKeywords) {
		score += 15
		strengths = append(strengths, "You grounded your answer in concrete examples")
	} else {
		improvements = append(improvements, "Back up your points with a specific example or project")
	}

	if containsDigit(answer) {
		score += 10
		strengths = append(strengths, "You quantified your impact with numbers")
	} else {
		improvements = append(improvements, "Add metrics or numbers to make your impact measurable")
	}

	if words > longAnswerWords {
		score += 15
		strengths = append(strengths, "You gave a thorough, well-developed response")
	} else {
		improvements = append(improvements, "Develop your response further to fully cover the question")
	}

	if score > maxScore {
		score = maxScore
	}

	return interview.Feedback{
		Score:        score,
		Strengths:    strengths,
		Improvements: improvements,
		SampleAnswer: sampleAnswerFor(q.Type),
	}, nil
}

// sampleAnswerFor returns the model answer for a question type; unrecognized
// types get the behavioral entry.
func sampleAnswerFor(t interview.QuestionType) string {
	switch t {
	case interview.TypeTechnical:
		return "In my last project I faced a similar challenge. I started by reproducing the issue, " +
			"narrowed the cause with targeted measurements, and compared two candidate fixes before " +
			"choosing the one with fewer trade-offs. The change cut error rates by 40% and I documented " +
			"the decision so the team could build on it."
	case interview.TypeSituational:
		return "First I would gather the facts and understand what is actually at risk. Then I would " +
			"raise the issue early with the people affected, propose two or three options with their " +
			"trade-offs, and agree on a plan with clear owners. Afterwards I would follow up to make " +
			"sure the fix held."
	default:
		return "At my previous company, our team faced a tight deadline on a critical deliverable. " +
			"I took ownership of the riskiest piece, coordinated daily with two other engineers, and " +
			"we shipped a week early. The project increased customer retention by 15%, and I learned " +
			"how much early communication reduces pressure later."
	}
}

func containsAnyKeyword(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
