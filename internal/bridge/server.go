package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"landform/internal/logging"
	"landform/internal/protocol"
	"landform/internal/session"
)

const maxRequestBody = 1 << 20

type Deps struct {
	Session Session
	Logger  *slog.Logger
}

type Server struct {
	deps        Deps
	mux         *http.ServeMux
	hub         *WSHub
	handler     *Handler
	logger      *slog.Logger
	forwarder   *stateForwarder
	unsubscribe func()
}

// NewServer wires the routes and starts forwarding session state to
// websocket clients. Close stops the forwarding.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		deps:    deps,
		mux:     http.NewServeMux(),
		handler: NewHandler(deps.Session),
		logger:  logger,
	}
	s.hub = NewWSHub(logger, s.handler.Handle, func() any {
		return BuildView(deps.Session.Content(), deps.Session.State())
	})
	s.forwarder = newStateForwarder(func(st session.State) {
		s.hub.Publish(protocol.OpState, BuildView(deps.Session.Content(), st))
	})
	s.unsubscribe = deps.Session.Subscribe(s.forwarder.Push)
	s.registerSessionRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.forwarder.Stop()
}

func (s *Server) registerSessionRoutes() {
	s.mux.HandleFunc("/api/session", s.handleSessionGet)
	s.mux.HandleFunc("/api/session/", s.handleSessionOp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	respondOK(w, BuildView(s.deps.Session.Content(), s.deps.Session.State()))
}

func (s *Server) handleSessionOp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	op := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session/"), "/")
	if op == "" || strings.Contains(op, "/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown session route")
		return
	}
	var payload json.RawMessage
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&payload); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
			return
		}
	}
	resp := s.handler.Handle(r.Context(), protocol.Message{
		ID:      "http",
		Type:    protocol.TypeRequest,
		Op:      "session." + op,
		Payload: payload,
	})
	if resp.Error != nil {
		respondError(w, statusFor(resp.Error.Code), resp.Error.Code, resp.Error.Message)
		return
	}
	s.logger.Debug("session op handled", "op", op)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": resp.Payload})
}

func statusFor(code string) int {
	switch code {
	case "UNKNOWN_OP", "NOT_FOUND":
		return http.StatusNotFound
	case "ACTION_FAILED":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
