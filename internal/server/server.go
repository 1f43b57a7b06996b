package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"carioca/internal/game"
	"carioca/internal/session"
)

const defaultGameType = "carioca"

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	log      *zap.Logger
}

// New creates a server with all routes.
func New(registry *game.Registry, manager *session.Manager, log *zap.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{code}/players", s.handleJoinSession)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/rounds", s.handleListRounds)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("took", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// handleListSessions lists live sessions, or the ledger's sessions in one
// status when ?status= is given.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, s.manager.List())
		return
	}
	rows, err := s.manager.History(session.Status(status))
	if errors.Is(err, session.ErrUnknownStatus) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("list session history", zap.String("status", status), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load sessions")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type createSessionRequest struct {
	GameType string `json:"gameType"`
	Name     string `json:"name"`
}

// joinResponse carries the seat secret, so it only ever goes to the joiner.
type joinResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
	Secret   string `json:"secret"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gameType := strings.TrimSpace(req.GameType)
	if gameType == "" {
		gameType = defaultGameType
	}

	sess, err := s.manager.Create(gameType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	host, err := sess.Join(req.Name)
	if err != nil {
		s.manager.Remove(sess.Code)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{Code: sess.Code, PlayerID: host.ID, Secret: host.Secret})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

type joinSessionRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := sess.Join(req.Name)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.broadcastState(sess)
	writeJSON(w, http.StatusCreated, joinResponse{Code: sess.Code, PlayerID: p.ID, Secret: p.Secret})
}

type startSessionRequest struct {
	PlayerID string `json:"playerId"`
	Secret   string `json:"secret"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !sess.Authorize(req.PlayerID, req.Secret) {
		writeError(w, http.StatusForbidden, "invalid player credentials")
		return
	}
	if err := sess.Start(req.PlayerID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	// Broadcast new state to all players
	s.broadcastState(sess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	rounds, err := s.manager.Rounds(code)
	if err != nil {
		s.log.Error("list rounds", zap.String("session", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load rounds")
		return
	}
	if _, live := s.manager.Get(code); !live && len(rounds) == 0 {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

// statusFor maps lobby errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotInLobby),
		errors.Is(err, session.ErrFull),
		errors.Is(err, session.ErrNotEnoughPlayers):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
