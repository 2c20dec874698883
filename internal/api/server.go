package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/example/creative-orchestrator/internal/models"
	"github.com/example/creative-orchestrator/internal/orchestrator"
)

// session pairs one conversation state with its turn lock. Turns on the same
// session run strictly one at a time.
type session struct {
	mu    sync.Mutex
	state *models.ConversationState
}

// Server exposes the conversation driver over HTTP.
type Server struct {
	driver *orchestrator.Driver
	hub    *orchestrator.Hub
	logger *slog.Logger

	sessMu   sync.RWMutex
	sessions map[string]*session
}

func NewServer(driver *orchestrator.Driver, hub *orchestrator.Hub, logger *slog.Logger) *Server {
	return &Server{
		driver:   driver,
		hub:      hub,
		logger:   logger,
		sessions: map[string]*session{},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/sessions/", s.handleSession)
	mux.HandleFunc("/events/", s.handleEvents)
}

type chatRequest struct {
	SessionID    string             `json:"session_id"`
	Message      string             `json:"message"`
	References   []models.Reference `json:"references,omitempty"`
	GlobalConfig map[string]any     `json:"global_config,omitempty"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	orchestrator.TurnResult
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sess := s.session(req.SessionID)
	sess.mu.Lock()
	result := s.driver.RunTurn(r.Context(), sess.state, orchestrator.TurnInput{
		SessionID:    req.SessionID,
		Utterance:    req.Message,
		References:   req.References,
		GlobalConfig: req.GlobalConfig,
	})
	sess.mu.Unlock()

	respondJSON(w, chatResponse{SessionID: req.SessionID, TurnResult: result})
}

// handleSession serves a read-only snapshot of the conversation state.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len("/sessions/"):]
	s.sessMu.RLock()
	sess, ok := s.sessions[id]
	s.sessMu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	respondJSON(w, sess.state)
}

// handleEvents streams turn events for a session as SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len("/events/"):]
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := s.hub.Subscribe(id)
	defer unsub()
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case b, open := <-ch:
			if !open {
				return
			}
			w.Write([]byte("data: "))
			w.Write(b)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) session(id string) *session {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{state: models.NewConversationState()}
		s.sessions[id] = sess
	}
	return sess
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
