package questions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prepflow/prepflow/internal/interview"
)

// Bank holds the question templates the local generator draws from.
// A bank can be loaded from YAML to let deployments tune wording without a
// rebuild; DefaultBank returns the compiled-in content.
type Bank struct {
	Signals     []SignalTemplate `yaml:"signals"`
	Skill       string           `yaml:"skill"`
	SkillTips   []string         `yaml:"skill_tips"`
	Employer    string           `yaml:"employer"`
	Situational []Template       `yaml:"situational"`
	Standard    []Template       `yaml:"standard"`
}

// SignalTemplate couples a thematic signal with its trigger keywords and the
// question emitted when the signal is present in the job description.
type SignalTemplate struct {
	Name     string                 `yaml:"name"`
	Keywords []string               `yaml:"keywords"`
	Type     interview.QuestionType `yaml:"type"`
	Text     string                 `yaml:"text"`
	Tips     []string               `yaml:"tips"`
}

// Template is a fixed question with optional tips.
type Template struct {
	Type interview.QuestionType `yaml:"type"`
	Text string                 `yaml:"text"`
	Tips []string               `yaml:"tips"`
}

// DefaultBank returns the built-in question bank. Signal order is part of
// the generator's determinism contract; do not reorder.
func DefaultBank() Bank {
	return Bank{
		Signals: []SignalTemplate{
			{
				Name:     "leadership",
				Keywords: []string{"lead", "leader", "manage", "mentor"},
				Type:     interview.TypeBehavioral,
				Text:     "Tell me about a time you led a team through a difficult project. What was your approach?",
				Tips:     []string{"Use the STAR method", "Quantify the outcome where possible"},
			},
			{
				Name:     "collaboration",
				Keywords: []string{"collaborat", "cross-functional", "stakeholder"},
				Type:     interview.TypeBehavioral,
				Text:     "Describe a situation where you had to collaborate with people outside your immediate team.",
				Tips:     []string{"Highlight how you handled differing priorities"},
			},
			{
				Name:     "problem-solving",
				Keywords: []string{"problem", "solve", "troubleshoot", "debug"},
				Type:     interview.TypeTechnical,
				Text:     "Walk me through the hardest problem you have solved in this domain. How did you break it down?",
				Tips:     []string{"Explain your reasoning, not just the fix"},
			},
			{
				Name:     "innovation",
				Keywords: []string{"innovat", "improve", "optimiz", "redesign"},
				Type:     interview.TypeTechnical,
				Text:     "Tell me about something you improved or redesigned that others had accepted as good enough.",
				Tips:     []string{"Focus on the measurable impact"},
			},
		},
		Skill:     "How have you applied %s in a real project? Describe a specific piece of work.",
		SkillTips: []string{"Pick one concrete project", "Mention trade-offs you considered"},
		Employer:  "Looking at your time at %s, what accomplishment are you most proud of and why?",
		Situational: []Template{
			{
				Type: interview.TypeSituational,
				Text: "Imagine you are two weeks from a deadline and discover a critical flaw in your approach. What do you do?",
				Tips: []string{"Show how you communicate bad news early"},
			},
			{
				Type: interview.TypeSituational,
				Text: "A teammate consistently misses their commitments, and it is starting to affect your work. How do you handle it?",
				Tips: []string{"Balance empathy with accountability"},
			},
		},
		Standard: []Template{
			{
				Type: interview.TypeBehavioral,
				Text: "Why are you interested in this role, and what makes you a strong fit?",
			},
			{
				Type: interview.TypeBehavioral,
				Text: "Tell me about a time you received difficult feedback. How did you respond?",
			},
			{
				Type: interview.TypeTechnical,
				Text: "How do you keep your skills current in this field? Give a recent example.",
			},
			{
				Type: interview.TypeBehavioral,
				Text: "Describe a failure that taught you something important.",
			},
		},
	}
}

// LoadBank reads a question bank from a YAML file and validates it.
func LoadBank(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, fmt.Errorf("reading question bank: %w", err)
	}

	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bank{}, fmt.Errorf("parsing question bank: %w", err)
	}

	if err := b.validate(); err != nil {
		return Bank{}, fmt.Errorf("invalid question bank %s: %w", path, err)
	}
	return b, nil
}

func (b Bank) validate() error {
	if len(b.Signals) == 0 {
		return fmt.Errorf("at least one signal template is required")
	}
	for i, s := range b.Signals {
		if s.Name == "" || s.Text == "" || len(s.Keywords) == 0 {
			return fmt.Errorf("signal %d must have name, text, and keywords", i)
		}
	}
	if b.Skill == "" || b.Employer == "" {
		return fmt.Errorf("skill and employer templates are required")
	}
	if len(b.Situational) == 0 {
		return fmt.Errorf("at least one situational question is required")
	}
	if len(b.Standard) == 0 {
		return fmt.Errorf("at least one standard question is required")
	}
	return nil
}
