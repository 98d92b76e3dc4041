// Package api exposes the session engine over HTTP (REST) and MCP. Both
// surfaces are thin adapters over the session controller; all interview
// semantics live in internal/session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepflow/prepflow/internal/interview"
	"github.com/prepflow/prepflow/internal/report"
	"github.com/prepflow/prepflow/internal/session"
	"github.com/prepflow/prepflow/internal/speech"
	"github.com/prepflow/prepflow/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// SessionStore reads persisted session history.
type SessionStore interface {
	GetSession(id string) (storage.SessionRecord, error)
	ListSessions(accountID string, limit int) ([]storage.SessionRecord, error)
}

// ResumeProvider imports resumes and serves snapshots.
type ResumeProvider interface {
	ImportText(accountID, name, text string) (storage.ResumeRecord, error)
	Snapshot(id string) (interview.ResumeSnapshot, error)
	List(accountID string, limit int) ([]storage.ResumeRecord, error)
}

// Deps wires the transport layers to the engine.
type Deps struct {
	Registry  *session.Registry
	Sessions  SessionStore
	Resumes   ResumeProvider
	AccountID string

	// NewController builds a fresh controller wired to the engine's
	// collaborators. One controller per live session.
	NewController func() *session.Controller
}

// NewHandler returns the REST API handler. An empty token disables auth
// (local single-user mode).
func NewHandler(deps Deps, token string) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if token != "" {
			r.Use(BearerAuth(token))
		}
		r.Route("/v1", func(r chi.Router) {
			r.Post("/sessions", h.createSession)
			r.Get("/sessions", h.listSessions)
			r.Get("/sessions/{id}", h.getSession)
			r.Post("/sessions/{id}/configure", h.configureSession)
			r.Post("/sessions/{id}/start", h.startSession)
			r.Post("/sessions/{id}/answer", h.submitAnswer)
			r.Post("/sessions/{id}/skip", h.skipQuestion)
			r.Post("/sessions/{id}/end", h.endSession)
			r.Get("/sessions/{id}/report", h.sessionReport)
			r.Post("/sessions/{id}/speech/events", h.speechEvent)
			r.Post("/resumes", h.importResume)
			r.Get("/resumes", h.listResumes)
		})
	})

	return r
}

type handler struct {
	deps Deps
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// --- session lifecycle ---

// setupRequest carries the interview context for create/configure.
type setupRequest struct {
	JobTitle       string   `json:"job_title"`
	JobDescription string   `json:"job_description"`
	Round          string   `json:"round"`
	Level          string   `json:"level"`
	Skills         []string `json:"skills"`
	ResumeID       string   `json:"resume_id"`
	ResumeText     string   `json:"resume_text"`
}

// sessionState is the engine's view of a live session, returned by every
// lifecycle endpoint.
type sessionState struct {
	ID              string              `json:"id"`
	Phase           session.Phase       `json:"phase"`
	Mode            interview.Mode      `json:"mode,omitempty"`
	Question        *interview.Question `json:"question,omitempty"`
	QuestionsAsked  int                 `json:"questions_asked"`
	Answered        int                 `json:"answered"`
	TrialCapReached bool                `json:"trial_cap_reached,omitempty"`
	OverallScore    int                 `json:"overall_score,omitempty"`
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	c := h.deps.NewController()
	if err := h.configure(c, req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	h.deps.Registry.Add(c)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stateOf(c))
}

func (h *handler) configureSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if err := h.configure(c, req); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, stateOf(c))
}

// configure builds the interview context from the request and applies it.
// Round and level fall back to defaults when omitted so a user can start
// with just the job posting and a resume.
func (h *handler) configure(c *session.Controller, req setupRequest) error {
	round := interview.RoundHR
	if req.Round != "" {
		var err error
		if round, err = interview.ParseRound(req.Round); err != nil {
			return err
		}
	}
	level := interview.LevelMedium
	if req.Level != "" {
		var err error
		if level, err = interview.ParseLevel(req.Level); err != nil {
			return err
		}
	}

	var snap interview.ResumeSnapshot
	switch {
	case req.ResumeID != "":
		var err error
		if snap, err = h.deps.Resumes.Snapshot(req.ResumeID); err != nil {
			return fmt.Errorf("resume %s: %w", req.ResumeID, err)
		}
	case req.ResumeText != "":
		rec, err := h.deps.Resumes.ImportText(h.deps.AccountID, "inline", req.ResumeText)
		if err != nil {
			return err
		}
		if snap, err = h.deps.Resumes.Snapshot(rec.ID); err != nil {
			return err
		}
	}

	return c.Configure(interview.Context{
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		Round:          round,
		Level:          level,
		Skills:         req.Skills,
		Resume:         snap,
	})
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	// The session (timer, speech) outlives this request.
	if err := c.Start(context.WithoutCancel(r.Context())); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, stateOf(c))
}

func (h *handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if err := c.Submit(r.Context(), req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, answerStateOf(c))
}

func (h *handler) skipQuestion(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Skip(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, answerStateOf(c))
}

func (h *handler) endSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.End(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, struct {
		sessionState
		Report report.Report `json:"report"`
	}{stateOf(c), c.Report()})
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c, ok := h.deps.Registry.Get(id); ok {
		writeJSON(w, c.Snapshot())
		return
	}
	// Not live: try persisted history.
	rec, err := h.deps.Sessions.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
		return
	}
	writeJSON(w, sessionDetailOf(rec))
}

// sessionDetail is the persisted record with its JSON columns expanded.
type sessionDetail struct {
	ID           string          `json:"id"`
	CreatedAt    string          `json:"created_at"`
	Mode         string          `json:"mode"`
	Context      json.RawMessage `json:"context"`
	Questions    json.RawMessage `json:"questions"`
	Answers      json.RawMessage `json:"answers"`
	Evaluation   json.RawMessage `json:"evaluation,omitempty"`
	OverallScore int             `json:"overall_score"`
	Status       string          `json:"status"`
}

func sessionDetailOf(rec storage.SessionRecord) sessionDetail {
	return sessionDetail{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
		Mode:         rec.Mode,
		Context:      json.RawMessage(rec.ContextJSON),
		Questions:    json.RawMessage(rec.QuestionsJSON),
		Answers:      json.RawMessage(rec.AnswersJSON),
		Evaluation:   json.RawMessage(rec.EvaluationJSON),
		OverallScore: rec.OverallScore,
		Status:       rec.Status,
	}
}

func (h *handler) sessionReport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, c.Report())
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.Sessions.ListSessions(h.deps.AccountID, 50)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "listing sessions: %v", err)
		return
	}
	type summary struct {
		ID           string `json:"id"`
		CreatedAt    string `json:"created_at"`
		Mode         string `json:"mode"`
		OverallScore int    `json:"overall_score"`
		Status       string `json:"status"`
	}
	out := make([]summary, len(recs))
	for i, rec := range recs {
		out[i] = summary{
			ID:           rec.ID,
			CreatedAt:    rec.CreatedAt.Format("2006-01-02 15:04"),
			Mode:         rec.Mode,
			OverallScore: rec.OverallScore,
			Status:       rec.Status,
		}
	}
	writeJSON(w, out)
}

// speechEvent ingests one device transcription callback for a live session.
func (h *handler) speechEvent(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Kind  string `json:"kind"`
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	ev, err := speech.NewDeviceEvent(req.Kind, req.Text, req.Error)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	writeJSON(w, map[string]bool{"delivered": c.SpeechEvent(ev)})
}

// --- resumes ---

func (h *handler) importResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	rec, err := h.deps.Resumes.ImportText(h.deps.AccountID, req.Name, req.Text)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resumeSummaryOf(rec))
}

type resumeSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

func resumeSummaryOf(rec storage.ResumeRecord) resumeSummary {
	return resumeSummary{
		ID:        rec.ID,
		Name:      rec.Name,
		Source:    rec.Source,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

func (h *handler) listResumes(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.Resumes.List(h.deps.AccountID, 50)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "listing resumes: %v", err)
		return
	}
	out := make([]resumeSummary, len(recs))
	for i, rec := range recs {
		out[i] = resumeSummaryOf(rec)
	}
	writeJSON(w, out)
}

// --- helpers ---

func (h *handler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := chi.URLParam(r, "id")
	c, ok := h.deps.Registry.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "not_found_error", "no live session %s", id)
		return nil, false
	}
	return c, true
}

func stateOf(c *session.Controller) sessionState {
	snap := c.Snapshot()
	st := sessionState{
		ID:              snap.ID,
		Phase:           c.Phase(),
		Mode:            snap.Mode,
		QuestionsAsked:  len(snap.Questions),
		Answered:        len(snap.Answers),
		TrialCapReached: c.CapReached(),
	}
	if q, ok := c.CurrentQuestion(); ok {
		st.Question = &q
	}
	if st.Phase == session.PhaseReview {
		st.OverallScore = snap.OverallScore
	}
	return st
}

// answerStateOf is stateOf plus the feedback for the answer just recorded.
func answerStateOf(c *session.Controller) any {
	snap := c.Snapshot()
	var fb *interview.Feedback
	if n := len(snap.Answers); n > 0 {
		fb = snap.Answers[n-1].Feedback
	}
	return struct {
		sessionState
		Feedback *interview.Feedback `json:"feedback,omitempty"`
	}{stateOf(c), fb}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrTrialCapReached):
		httpError(w, http.StatusForbidden, "trial_limit_reached", "%v", err)
	case errors.Is(err, session.ErrSubmitting):
		httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
	case errors.Is(err, session.ErrWrongPhase):
		httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
