// Package apitest provides an in-memory responses API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"landform/internal/form"
)

type Response struct {
	ID           string
	ProjectID    string
	SessionID    string
	HiddenFields map[string]string
	Answers      form.Answers
	LastFieldRef string
	Completed    bool
	CaptchaToken string
}

type Update struct {
	ResponseID   string
	SessionID    string
	Answers      form.Answers
	LastFieldRef string
}

type Completion struct {
	ResponseID   string
	SessionID    string
	Answers      form.Answers
	CaptchaToken string
}

type TrackedEvent struct {
	ProjectID string
	Event     string
	SessionID string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	responses   map[string]*Response
	updates     []Update
	completions []Completion
	events      []TrackedEvent
	failures    map[string]int
	updateGate  chan struct{}
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		responses: map[string]*Response{},
		failures:  map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/responses", s.handleStart)
	mux.HandleFunc("PATCH /api/responses/{id}", s.handleUpdate)
	mux.HandleFunc("POST /api/responses/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/analytics/track", s.handleTrack)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Fail makes every request for op ("start", "update", "complete", "track")
// answer with status until Fail(op, 0) is called.
func (s *Server) Fail(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, op)
		return
	}
	s.failures[op] = status
}

// HoldUpdates blocks update handlers until the returned release is called.
func (s *Server) HoldUpdates() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.updateGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.updateGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) Response(id string) (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return Response{}, false
	}
	out := *r
	out.Answers = r.Answers.Clone()
	return out, true
}

func (s *Server) ResponseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *Server) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

func (s *Server) Completions() []Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Completion(nil), s.completions...)
}

func (s *Server) Events() []TrackedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrackedEvent(nil), s.events...)
}

func (s *Server) failure(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if code := s.failure("start"); code != 0 {
		http.Error(w, "start unavailable", code)
		return
	}
	var req struct {
		ProjectID    string            `json:"projectId"`
		SessionID    string            `json:"sessionId"`
		HiddenFields map[string]string `json:"hiddenFields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		http.Error(w, "projectId is required", http.StatusBadRequest)
		return
	}
	resp := &Response{
		ID:           uuid.NewString(),
		ProjectID:    req.ProjectID,
		SessionID:    req.SessionID,
		HiddenFields: req.HiddenFields,
		Answers:      form.Answers{},
	}
	s.mu.Lock()
	s.responses[resp.ID] = resp
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"id": resp.ID, "sessionId": resp.SessionID})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.updateGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if code := s.failure("update"); code != 0 {
		http.Error(w, "update unavailable", code)
		return
	}
	var req struct {
		Answers      form.Answers `json:"answers"`
		LastFieldRef string       `json:"lastFieldRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	sessionID := r.Header.Get("x-session-id")
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[id]
	if !ok || resp.SessionID != sessionID {
		http.Error(w, "unknown response", http.StatusNotFound)
		return
	}
	resp.Answers = req.Answers
	resp.LastFieldRef = req.LastFieldRef
	s.updates = append(s.updates, Update{ResponseID: id, SessionID: sessionID, Answers: req.Answers, LastFieldRef: req.LastFieldRef})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if code := s.failure("complete"); code != 0 {
		http.Error(w, "complete unavailable", code)
		return
	}
	var req struct {
		Answers      form.Answers `json:"answers"`
		CaptchaToken string       `json:"captchaToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	sessionID := r.Header.Get("x-session-id")
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[id]
	if !ok || resp.SessionID != sessionID {
		http.Error(w, "unknown response", http.StatusNotFound)
		return
	}
	if req.Answers != nil {
		resp.Answers = req.Answers
	}
	resp.Completed = true
	resp.CaptchaToken = req.CaptchaToken
	s.completions = append(s.completions, Completion{ResponseID: id, SessionID: sessionID, Answers: req.Answers, CaptchaToken: req.CaptchaToken})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
		Event     string `json:"event"`
		SessionID string `json:"sessionId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.events = append(s.events, TrackedEvent{ProjectID: req.ProjectID, Event: req.Event, SessionID: req.SessionID})
	s.mu.Unlock()
	if code := s.failure("track"); code != 0 {
		http.Error(w, "track unavailable", code)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
