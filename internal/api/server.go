// Package api exposes the cards' render states and user actions over
// HTTP. It is the daemon's stand-in for the host dashboard surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"timercard/internal/card"
)

// Server serves card render states and accepts card actions.
type Server struct {
	cards  map[string]*card.Card
	logger *zap.Logger
	server *http.Server
}

// NewServer creates an API server over the given cards.
func NewServer(cards []*card.Card, logger *zap.Logger, port int) *Server {
	byName := make(map[string]*card.Card, len(cards))
	for _, c := range cards {
		byName[c.Name()] = c
	}

	s := &Server{
		cards:  byName,
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("GET /api/cards/{name}", s.handleGetCard)
	mux.HandleFunc("POST /api/cards/{name}/start", s.handleStart)
	mux.HandleFunc("POST /api/cards/{name}/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/cards/{name}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/cards/{name}/reset", s.handleReset)
	mux.HandleFunc("POST /api/cards/{name}/details", s.handleDetails)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("API server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	states := make(map[string]card.RenderState, len(s.cards))
	for name, c := range s.cards {
		states[name] = c.RenderState()
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, c.RenderState())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.StartTimer(body.Minutes); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := c.CancelTimer(); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := c.TogglePower(); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.ResetUsage(body.Confirm); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := c.ShowDetails(); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*card.Card, bool) {
	name := r.PathValue("name")
	c, ok := s.cards[name]
	if !ok {
		http.Error(w, fmt.Sprintf("card %q not found", name), http.StatusNotFound)
		return nil, false
	}
	return c, true
}

func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
