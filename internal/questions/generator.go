// Package questions implements the deterministic local question generator
// used when the remote interview service is unavailable.
package questions

import (
	"fmt"
	"strings"

	"github.com/prepflow/prepflow/internal/interview"
)

// SessionSize is the fixed number of questions in a locally generated session.
const SessionSize = 8

const maxSkillQuestions = 3

// Generator builds question lists from an interview context. It is a pure
// function of its inputs: identical contexts always yield identical lists.
type Generator struct {
	bank Bank
}

// NewGenerator creates a Generator backed by the given bank.
func NewGenerator(bank Bank) *Generator {
	return &Generator{bank: bank}
}

// Generate returns exactly SessionSize questions for the context, ordered by
// precedence: job-description signals, then skills, then recent employer,
// then the fixed situational pair, padded from the rotating standard pool.
// This ordering is a compatibility contract relied on for reproducibility.
func (g *Generator) Generate(ctx interview.Context) []interview.Question {
	var out []interview.Question
	desc := strings.ToLower(ctx.JobDescription)

	// Thematic signals, in bank order.
	for _, sig := range g.bank.Signals {
		if containsAny(desc, sig.Keywords) {
			out = append(out, interview.Question{
				Text: sig.Text,
				Type: sig.Type,
				Tips: sig.Tips,
			})
		}
	}

	// Skill-specific technical questions from the first few skills.
	for i, skill := range ctx.Skills {
		if i >= maxSkillQuestions {
			break
		}
		out = append(out, interview.Question{
			Text: fmt.Sprintf(g.bank.Skill, skill),
			Type: interview.TypeTechnical,
			Tips: g.bank.SkillTips,
		})
	}

	// One question about the most recent employer, if the resume has any.
	if len(ctx.Resume.Experience) > 0 {
		out = append(out, interview.Question{
			Text: fmt.Sprintf(g.bank.Employer, ctx.Resume.Experience[0].Company),
			Type: interview.TypeBehavioral,
		})
	}

	for _, t := range g.bank.Situational {
		out = append(out, interview.Question{Text: t.Text, Type: t.Type, Tips: t.Tips})
	}

	// Pad from the standard pool, rotating through it in order.
	for i := 0; len(out) < SessionSize; i++ {
		t := g.bank.Standard[i%len(g.bank.Standard)]
		out = append(out, interview.Question{Text: t.Text, Type: t.Type, Tips: t.Tips})
	}
	out = out[:SessionSize]

	difficulty := interview.DifficultyForLevel(ctx.Level)
	for i := range out {
		out[i].ID = i + 1
		out[i].Type = remapForRound(out[i].Type, ctx.Round)
		out[i].Difficulty = difficulty
	}
	return out
}

// remapForRound adjusts question types to match the round being practiced.
func remapForRound(t interview.QuestionType, r interview.Round) interview.QuestionType {
	switch r {
	case interview.RoundHR:
		if t == interview.TypeTechnical {
			return interview.TypeBehavioral
		}
	case interview.RoundManagerial:
		if t == interview.TypeTechnical {
			return interview.TypeSituational
		}
	case interview.RoundTechnical2:
		if t == interview.TypeBehavioral {
			return interview.TypeTechnical
		}
	}
	return t
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
