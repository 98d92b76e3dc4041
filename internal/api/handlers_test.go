package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepflow/prepflow/internal/grading"
	"github.com/prepflow/prepflow/internal/interview"
	"github.com/prepflow/prepflow/internal/questions"
	"github.com/prepflow/prepflow/internal/resume"
	"github.com/prepflow/prepflow/internal/session"
	"github.com/prepflow/prepflow/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHandler(t *testing.T, token string) (http.Handler, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	deps := Deps{
		Registry:  session.NewRegistry(),
		Sessions:  store,
		Resumes:   resume.NewProvider(store),
		AccountID: "acct-test",
		NewController: func() *session.Controller {
			return session.New(session.Deps{
				Grader:    grading.NewLocalGrader(),
				Generator: questions.NewGenerator(questions.DefaultBank()),
				Store:     store,
				AccountID: "acct-test",
			})
		},
	}
	return NewHandler(deps, token), store
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) sessionState {
	t.Helper()
	var st sessionState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding state: %v (body %s)", err, w.Body.String())
	}
	return st
}

var validSetup = setupRequest{
	JobTitle:       "Backend Engineer",
	JobDescription: "Build APIs in Go",
	Round:          "technical_round_1",
	Level:          "medium",
	Skills:         []string{"Go"},
	ResumeText:     "EXPERIENCE\nEngineer at Acme (2020-2024)",
}

func TestHealthUnauthenticated(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	w := get(t, h, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestBearerAuthRequired(t *testing.T) {
	h, _ := newTestHandler(t, "secret")
	w := get(t, h, "/v1/sessions")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, "")

	w := postJSON(t, h, "/v1/sessions", validSetup)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	st := decodeState(t, w)
	if st.Phase != session.PhaseSetup || st.ID == "" {
		t.Fatalf("created state = %+v", st)
	}
	id := st.ID

	w = postJSON(t, h, "/v1/sessions/"+id+"/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	st = decodeState(t, w)
	if st.Phase != session.PhasePractice {
		t.Errorf("phase after start = %q", st.Phase)
	}
	if st.Mode != interview.ModeLocal {
		t.Errorf("mode = %q, want local (no remote service wired)", st.Mode)
	}
	if st.Question == nil || st.Question.Text == "" {
		t.Fatal("start should surface the first question")
	}
	if st.QuestionsAsked != questions.SessionSize {
		t.Errorf("questions asked = %d, want %d", st.QuestionsAsked, questions.SessionSize)
	}

	w = postJSON(t, h, "/v1/sessions/"+id+"/answer", map[string]string{
		"text": "I led a project team of five engineers through a large migration.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("answer status = %d: %s", w.Code, w.Body.String())
	}
	var answered struct {
		sessionState
		Feedback *interview.Feedback `json:"feedback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &answered); err != nil {
		t.Fatalf("decoding answer response: %v", err)
	}
	if answered.Feedback == nil || answered.Feedback.Score == 0 {
		t.Errorf("answer should come back graded, got %+v", answered.Feedback)
	}
	if answered.Answered != 1 {
		t.Errorf("answered = %d, want 1", answered.Answered)
	}

	w = postJSON(t, h, "/v1/sessions/"+id+"/skip", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("skip status = %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, h, "/v1/sessions/"+id+"/end", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end status = %d: %s", w.Code, w.Body.String())
	}
	var ended struct {
		sessionState
		Report struct {
			Answered       int `json:"answered"`
			QuestionsAsked int `json:"questions_asked"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ended); err != nil {
		t.Fatalf("decoding end response: %v", err)
	}
	if ended.Phase != session.PhaseReview {
		t.Errorf("phase after end = %q", ended.Phase)
	}
	if ended.Report.Answered != 2 {
		t.Errorf("report answered = %d, want 2", ended.Report.Answered)
	}
}

func TestEndedSessionPersistedAndListed(t *testing.T) {
	h, store := newTestHandler(t, "")

	st := decodeState(t, postJSON(t, h, "/v1/sessions", validSetup))
	postJSON(t, h, "/v1/sessions/"+st.ID+"/start", nil)
	postJSON(t, h, "/v1/sessions/"+st.ID+"/answer", map[string]string{"text": "answer"})
	postJSON(t, h, "/v1/sessions/"+st.ID+"/end", nil)

	rec, err := store.GetSession(st.ID)
	if err != nil {
		t.Fatalf("session should be persisted after end: %v", err)
	}
	if rec.Status != string(interview.StatusCompleted) {
		t.Errorf("persisted status = %q", rec.Status)
	}

	w := get(t, h, "/v1/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("listed %d sessions, want 1", len(list))
	}
}

func TestStartRejectsIncompleteSetup(t *testing.T) {
	h, _ := newTestHandler(t, "")

	st := decodeState(t, postJSON(t, h, "/v1/sessions", setupRequest{JobTitle: "Engineer"}))
	w := postJSON(t, h, "/v1/sessions/"+st.ID+"/start", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("start with incomplete setup = %d, want 400", w.Code)
	}

	// The session survives a failed start; complete the setup and retry.
	w = postJSON(t, h, "/v1/sessions/"+st.ID+"/configure", validSetup)
	if w.Code != http.StatusOK {
		t.Fatalf("configure status = %d: %s", w.Code, w.Body.String())
	}
	if w := postJSON(t, h, "/v1/sessions/"+st.ID+"/start", nil); w.Code != http.StatusOK {
		t.Errorf("start after completing setup = %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateRejectsUnknownRound(t *testing.T) {
	h, _ := newTestHandler(t, "")
	req := validSetup
	req.Round = "phone_screen"
	if w := postJSON(t, h, "/v1/sessions", req); w.Code != http.StatusBadRequest {
		t.Errorf("create with unknown round = %d, want 400", w.Code)
	}
}

func TestAnswerOutsidePracticeConflicts(t *testing.T) {
	h, _ := newTestHandler(t, "")
	st := decodeState(t, postJSON(t, h, "/v1/sessions", validSetup))

	w := postJSON(t, h, "/v1/sessions/"+st.ID+"/answer", map[string]string{"text": "early"})
	if w.Code != http.StatusConflict {
		t.Errorf("answer before start = %d, want 409", w.Code)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	h, _ := newTestHandler(t, "")
	if w := postJSON(t, h, "/v1/sessions/nope/start", nil); w.Code != http.StatusNotFound {
		t.Errorf("start on unknown session = %d, want 404", w.Code)
	}
	if w := get(t, h, "/v1/sessions/nope"); w.Code != http.StatusNotFound {
		t.Errorf("get on unknown session = %d, want 404", w.Code)
	}
}

func TestResumeImportAndList(t *testing.T) {
	h, _ := newTestHandler(t, "")

	w := postJSON(t, h, "/v1/resumes", map[string]string{
		"name": "cv.txt",
		"text": "EXPERIENCE\nEngineer at Acme",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}
	var rec struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decoding resume: %v", err)
	}
	if rec.ID == "" || rec.Source != "text" {
		t.Errorf("imported resume = %+v", rec)
	}

	// Starting a session against the stored resume by ID.
	req := validSetup
	req.ResumeText = ""
	req.ResumeID = rec.ID
	st := decodeState(t, postJSON(t, h, "/v1/sessions", req))
	if w := postJSON(t, h, "/v1/sessions/"+st.ID+"/start", nil); w.Code != http.StatusOK {
		t.Errorf("start with resume_id = %d: %s", w.Code, w.Body.String())
	}

	w = get(t, h, "/v1/resumes")
	var list []json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding resume list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("listed %d resumes, want 1", len(list))
	}
}

func TestSpeechEvents(t *testing.T) {
	h, _ := newTestHandler(t, "")
	st := decodeState(t, postJSON(t, h, "/v1/sessions", validSetup))
	postJSON(t, h, "/v1/sessions/"+st.ID+"/start", nil)

	// No device bridge wired in this configuration: accepted but not delivered.
	w := postJSON(t, h, "/v1/sessions/"+st.ID+"/speech/events", map[string]string{
		"kind": "final",
		"text": "spoken answer",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("speech event status = %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Delivered bool `json:"delivered"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Delivered {
		t.Error("event should not be delivered without a device bridge")
	}

	if w := postJSON(t, h, "/v1/sessions/"+st.ID+"/speech/events", map[string]string{"kind": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown event kind = %d, want 400", w.Code)
	}
}

func TestImportEmptyResumeRejected(t *testing.T) {
	h, _ := newTestHandler(t, "")
	if w := postJSON(t, h, "/v1/resumes", map[string]string{"name": "cv", "text": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty resume import = %d, want 400", w.Code)
	}
}
