// Package mobilebridge implements the three HTTP boundary routes a
// mobile companion app uses to observe and drive the façade: status
// polling, worker-endpoint registration, and token validation. It is a
// thin net/http surface; all real work is delegated to the façade and
// its session-token manager.
package mobilebridge

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/opd-ai/go-tor/pkg/facade"
	"github.com/opd-ai/go-tor/pkg/logger"
)

// Server holds the façade and token manager the three routes are backed
// by, plus the last worker list POST /workers registered.
type Server struct {
	facade *facade.Facade
	log    *logger.Logger

	mu      sync.Mutex
	workers []string
}

// New constructs a Server backed by f.
func New(f *facade.Facade, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Server{facade: f, log: log}
}

// Handler returns an http.Handler exposing the three boundary routes at
// their spec-named paths.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/workers", s.handleWorkers)
	mux.HandleFunc("/validate", s.handleValidate)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.facade.GetStatus()))
}

type workersRequest struct {
	Workers []string `json:"workers"`
	Token   string   `json:"token"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req workersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !s.facade.Tokens().Validate(req.Token) {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.workers = append([]string{}, req.Workers...)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	valid := s.facade.Tokens().Validate(token)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(valid)
}

// Workers returns the most recently registered worker URL list.
func (s *Server) Workers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.workers...)
}
