// Package session owns the mock-interview state machine: it sources
// questions (remote thread or local generator), runs the per-question
// answer/grade cycle, enforces the trial cap, and produces the final
// report and persisted record.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepflow/prepflow/internal/grading"
	"github.com/prepflow/prepflow/internal/interview"
	"github.com/prepflow/prepflow/internal/interviewer"
	"github.com/prepflow/prepflow/internal/questions"
	"github.com/prepflow/prepflow/internal/report"
	"github.com/prepflow/prepflow/internal/speech"
	"github.com/prepflow/prepflow/internal/storage"
	"github.com/prepflow/prepflow/internal/trial"
)

// Phase is the controller's lifecycle state.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePractice Phase = "practice"
	PhaseReview   Phase = "review"
)

var (
	// ErrWrongPhase is returned when an operation is not valid in the
	// controller's current phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")

	// ErrSubmitting is returned when a submit or skip arrives while a
	// previous one is still being processed.
	ErrSubmitting = errors.New("an answer is already being processed")

	// ErrTrialCapReached is returned once the trial time box has expired;
	// the caller should surface the upgrade prompt and either end the
	// session or abandon it.
	ErrTrialCapReached = errors.New("trial time limit reached")
)

// InterviewService is the remote conversational question source.
// Implemented by interviewer.Client.
type InterviewService interface {
	Start(ctx context.Context, ictx interview.Context) (interviewer.TurnResponse, error)
	Respond(ctx context.Context, threadID, answer string, messages []interviewer.Message, ictx interview.Context) (interviewer.TurnResponse, error)
	End(ctx context.Context, threadID string, messages []interviewer.Message, ictx interview.Context) (interviewer.Evaluation, error)
}

// Store persists the finalized session record. Implemented by storage.Store.
type Store interface {
	SaveSession(rec storage.SessionRecord) error
}

// Deps wires a Controller's collaborators.
type Deps struct {
	Interviewer  InterviewService // optional; nil forces local mode
	Grader       grading.Grader
	Generator    *questions.Generator
	Speech       *speech.Coordinator
	SpeechEvents *speech.Bridge // optional; set when capture events arrive over HTTP
	Entitlements trial.Entitlements
	Store        Store
	AccountID    string
	SpeechOn     bool
}

// Controller drives one practice session from setup through review. All
// exported methods are safe for concurrent use; the submitting flag keeps
// the answer cycle single-flight.
type Controller struct {
	deps  Deps
	timer *trial.Timer

	mu         sync.Mutex
	phase      Phase
	sess       interview.Session
	messages   []interviewer.Message
	evaluation json.RawMessage
	current    int // index into sess.Questions of the question being asked
	submitting bool
	capped     bool
	persisted  bool
}

// New creates a Controller in the setup phase.
func New(deps Deps) *Controller {
	c := &Controller{
		deps:  deps,
		phase: PhaseSetup,
		sess: interview.Session{
			ID:     uuid.New().String(),
			Status: interview.StatusInProgress,
		},
	}
	c.timer = trial.NewTimer(deps.Entitlements, deps.AccountID, c.onTrialCap)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.sess.ID
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Configure sets the interview context. Only valid during setup.
func (c *Controller) Configure(ictx interview.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseSetup {
		return fmt.Errorf("%w: session already started", ErrWrongPhase)
	}
	c.sess.Context = ictx
	return nil
}

// Start validates the context and transitions setup → practice. The remote
// interview service is tried first; any failure silently falls back to the
// local question generator.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseSetup {
		c.mu.Unlock()
		return fmt.Errorf("%w: session already started", ErrWrongPhase)
	}
	ictx := c.sess.Context
	c.mu.Unlock()

	if err := ictx.Validate(); err != nil {
		return fmt.Errorf("incomplete setup: %w", err)
	}

	mode := interview.ModeLocal
	var threadID string
	var qs []interview.Question
	var msgs []interviewer.Message

	if c.deps.Interviewer != nil {
		turn, err := c.deps.Interviewer.Start(ctx, ictx)
		if err == nil {
			mode = interview.ModeAI
			threadID = turn.ThreadID
			msgs = turn.Messages
			qs = []interview.Question{c.questionFromTurn(turn, 1)}
		} else {
			slog.Warn("remote interview start failed, falling back to local questions", "error", err)
		}
	}
	if mode == interview.ModeLocal {
		qs = c.deps.Generator.Generate(ictx)
	}

	c.mu.Lock()
	if c.phase != PhaseSetup {
		c.mu.Unlock()
		return fmt.Errorf("%w: session already started", ErrWrongPhase)
	}
	c.phase = PhasePractice
	c.sess.Mode = mode
	c.sess.ThreadID = threadID
	c.sess.Questions = qs
	c.sess.StartedAt = time.Now().UTC()
	c.messages = msgs
	c.current = 0
	text := qs[0].Text
	c.mu.Unlock()

	c.timer.Start(ctx)
	c.presentQuestion(ctx, text)
	return nil
}

// questionFromTurn converts a remote turn into a Question. Question IDs must
// keep increasing even when the service repeats or rewinds its numbering, so
// the larger of the reported number and the local fallback wins. The remote
// service does not tag difficulty, so the level-derived value applies.
func (c *Controller) questionFromTurn(turn interviewer.TurnResponse, fallbackID int) interview.Question {
	id := turn.QuestionNumber
	if id < fallbackID {
		id = fallbackID
	}
	qt := interview.QuestionType(turn.QuestionType)
	switch qt {
	case interview.TypeBehavioral, interview.TypeTechnical, interview.TypeSituational:
	default:
		qt = interview.TypeBehavioral
	}
	return interview.Question{
		ID:         id,
		Text:       turn.Question,
		Type:       qt,
		Difficulty: interview.DifficultyForLevel(c.sess.Context.Level),
	}
}

// presentQuestion plays the question and arms capture once playback ends.
func (c *Controller) presentQuestion(ctx context.Context, text string) {
	c.timer.ResetQuestion()
	c.timer.Resume()
	if c.deps.Speech == nil || !c.deps.SpeechOn {
		return
	}
	c.deps.Speech.ResetTranscript()
	c.deps.Speech.Play(ctx, text, func(err error) {
		if err != nil {
			// Cancelled or superseded; the next question's playback owns
			// the microphone now.
			return
		}
		c.mu.Lock()
		active := c.phase == PhasePractice && !c.capped
		c.mu.Unlock()
		if active {
			c.deps.Speech.StartCapture(ctx)
		}
	})
}

// CurrentQuestion returns the question awaiting an answer.
func (c *Controller) CurrentQuestion() (interview.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhasePractice || c.current >= len(c.sess.Questions) {
		return interview.Question{}, false
	}
	return c.sess.Questions[c.current], true
}

// Submit grades the answer for the current question and advances or
// finalizes the session. Typed text and any captured transcript are
// combined; duration comes from the per-question stopwatch.
func (c *Controller) Submit(ctx context.Context, typed string) error {
	c.mu.Lock()
	if c.phase != PhasePractice {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	if c.capped {
		c.mu.Unlock()
		return ErrTrialCapReached
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	c.submitting = true
	q := c.sess.Questions[c.current]
	ictx := c.sess.Context
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	// Grading latency must not count against the trial time box.
	c.timer.Pause()
	duration := c.timer.QuestionSeconds()
	answerText := typed
	if c.deps.Speech != nil {
		c.deps.Speech.StopCapture()
		if spoken := c.deps.Speech.Transcript(); spoken != "" {
			if answerText != "" {
				answerText += " "
			}
			answerText += spoken
		}
		c.deps.Speech.CancelPlayback()
	}

	fb, err := c.deps.Grader.Grade(ctx, q, answerText, ictx)
	if err != nil {
		// Grader chains end in the infallible local grader; an error here
		// means even that was miswired.
		return fmt.Errorf("grading answer: %w", err)
	}

	answer := interview.Answer{
		QuestionID:      q.ID,
		Text:            answerText,
		DurationSeconds: duration,
		Feedback:        &fb,
	}

	c.mu.Lock()
	c.sess.Answers = append(c.sess.Answers, answer)
	mode := c.sess.Mode
	threadID := c.sess.ThreadID
	c.messages = append(c.messages,
		interviewer.Message{Role: "assistant", Content: q.Text},
		interviewer.Message{Role: "user", Content: answerText},
	)
	msgs := append([]interviewer.Message(nil), c.messages...)
	c.mu.Unlock()

	if mode == interview.ModeAI {
		return c.advanceAI(ctx, threadID, answerText, msgs, ictx)
	}
	return c.advanceLocal(ctx)
}

// Skip records an unanswered question and advances. Skips never touch the
// remote thread, even in AI mode; when no next question is already on hand
// the session finalizes.
func (c *Controller) Skip(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhasePractice {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	if c.capped {
		c.mu.Unlock()
		return ErrTrialCapReached
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	c.submitting = true
	q := c.sess.Questions[c.current]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	c.timer.Pause()
	if c.deps.Speech != nil {
		c.deps.Speech.StopCapture()
		c.deps.Speech.CancelPlayback()
	}

	answer := interview.Answer{
		QuestionID: q.ID,
		Skipped:    true,
		Feedback: &interview.Feedback{
			Score:        0,
			Improvements: []string{"Question was skipped — try answering even partially to practice thinking on your feet"},
		},
	}

	c.mu.Lock()
	c.sess.Answers = append(c.sess.Answers, answer)
	c.mu.Unlock()

	return c.advanceLocal(ctx)
}

// advanceAI submits the answer to the remote thread and either continues
// with the returned question or, on completion, finalizes with the remote
// evaluation. Remote failures mid-session degrade to local advancement.
func (c *Controller) advanceAI(ctx context.Context, threadID, answerText string, msgs []interviewer.Message, ictx interview.Context) error {
	turn, err := c.deps.Interviewer.Respond(ctx, threadID, answerText, msgs, ictx)
	if err != nil {
		slog.Warn("remote respond failed, finalizing from local answers", "error", err)
		return c.finalize(ctx, true)
	}

	if turn.IsComplete {
		return c.finalize(ctx, true)
	}

	c.mu.Lock()
	next := c.questionFromTurn(turn, len(c.sess.Questions)+1)
	c.sess.Questions = append(c.sess.Questions, next)
	c.current = len(c.sess.Questions) - 1
	c.messages = turn.Messages
	text := next.Text
	c.mu.Unlock()

	c.presentQuestion(ctx, text)
	return nil
}

// advanceLocal moves to the next already-known question, finalizing when
// the list is exhausted.
func (c *Controller) advanceLocal(ctx context.Context) error {
	c.mu.Lock()
	if c.current+1 < len(c.sess.Questions) {
		c.current++
		text := c.sess.Questions[c.current].Text
		c.mu.Unlock()
		c.presentQuestion(ctx, text)
		return nil
	}
	mode := c.sess.Mode
	c.mu.Unlock()

	return c.finalize(ctx, mode == interview.ModeAI)
}

// End finishes the session early with whatever answers exist so far.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhasePractice {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	mode := c.sess.Mode
	c.mu.Unlock()

	return c.finalize(ctx, mode == interview.ModeAI)
}

// finalize stops all activity, optionally fetches the remote evaluation,
// computes the overall score, persists the record, and enters review.
func (c *Controller) finalize(ctx context.Context, endRemote bool) error {
	c.teardown()

	if endRemote && c.deps.Interviewer != nil {
		c.mu.Lock()
		threadID := c.sess.ThreadID
		msgs := append([]interviewer.Message(nil), c.messages...)
		ictx := c.sess.Context
		c.mu.Unlock()

		if threadID != "" {
			eval, err := c.deps.Interviewer.End(ctx, threadID, msgs, ictx)
			if err != nil {
				slog.Warn("remote end failed, evaluation will be absent", "error", err)
			} else {
				c.mu.Lock()
				c.evaluation = eval.Raw
				c.mu.Unlock()
			}
		}
	}

	c.mu.Lock()
	if c.phase == PhaseReview {
		c.mu.Unlock()
		return nil
	}
	c.phase = PhaseReview
	c.sess.OverallScore = interview.OverallScore(c.sess.Answers)
	c.sess.Status = interview.StatusCompleted
	c.sess.CompletedAt = time.Now().UTC()
	rec, err := c.buildRecordLocked()
	alreadyPersisted := c.persisted
	c.persisted = true
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}
	if alreadyPersisted || c.deps.Store == nil {
		return nil
	}
	if err := c.deps.Store.SaveSession(rec); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// buildRecordLocked marshals the session into its immutable persisted form.
// Callers must hold mu.
func (c *Controller) buildRecordLocked() (storage.SessionRecord, error) {
	ctxJSON, err := json.Marshal(c.sess.Context)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	qJSON, err := json.Marshal(c.sess.Questions)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	aJSON, err := json.Marshal(c.sess.Answers)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return storage.SessionRecord{
		ID:             c.sess.ID,
		AccountID:      c.deps.AccountID,
		CreatedAt:      c.sess.CompletedAt,
		Mode:           string(c.sess.Mode),
		ThreadID:       c.sess.ThreadID,
		ContextJSON:    string(ctxJSON),
		QuestionsJSON:  string(qJSON),
		AnswersJSON:    string(aJSON),
		EvaluationJSON: string(c.evaluation),
		OverallScore:   c.sess.OverallScore,
		Status:         string(c.sess.Status),
	}, nil
}

// teardown stops the timer and all speech activity. Idempotent; the three
// stop operations are order-independent.
func (c *Controller) teardown() {
	c.timer.Stop()
	if c.deps.Speech != nil {
		c.deps.Speech.StopAll()
	}
}

// onTrialCap runs from the timer goroutine when a trial user's cumulative
// time expires: capture stops, further answers are rejected, and answers
// collected so far remain intact for an explicit End.
func (c *Controller) onTrialCap() {
	c.mu.Lock()
	c.capped = true
	c.mu.Unlock()
	if c.deps.Speech != nil {
		c.deps.Speech.StopCapture()
	}
	slog.Info("session paused at trial cap", "session_id", c.sess.ID)
}

// SpeechEvent forwards a device transcription event into the capture
// pipeline. It reports whether the event was delivered to an active capture
// run; false means no device bridge is wired or capture is not listening.
func (c *Controller) SpeechEvent(ev speech.Event) bool {
	if c.deps.SpeechEvents == nil {
		return false
	}
	return c.deps.SpeechEvents.Push(ev)
}

// CapReached reports whether the trial time box expired mid-session.
func (c *Controller) CapReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capped
}

// Snapshot returns a copy of the session as it stands.
func (c *Controller) Snapshot() interview.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	s.Questions = append([]interview.Question(nil), c.sess.Questions...)
	s.Answers = append([]interview.Answer(nil), c.sess.Answers...)
	return s
}

// Report aggregates the session's answers. Valid in any phase; before any
// answers it returns the zero report.
func (c *Controller) Report() report.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return report.Build(c.sess.Questions, c.sess.Answers)
}
