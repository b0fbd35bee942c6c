// Package bridge exposes an overview session over HTTP so remote displays
// can render the proposal and send user actions. Actions are serialized.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/session"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Driver is the session surface the bridge needs. *session.Session
// implements it.
type Driver interface {
	Handle(action proposal.Action) error
	State() session.State
	Help() string
}

// Server wraps the HTTP listener and handlers backing the bridge.
type Server struct {
	settings Settings
	driver   Driver
	hub      *Hub
	logbook  *logbook.Logbook
	clock    func() time.Time

	// actions serializes every access to the driver.
	actions sync.Mutex

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogbook records requests and failures in the overview log.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Server) {
		s.logbook = lb
	}
}

// WithHub shares an update hub with other displays.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server for driver.
func NewServer(settings Settings, driver Driver, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		driver:   driver,
		hub:      NewHub(0),
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Hub returns the update hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/proposal", s.handleProposal)
	mux.HandleFunc("/actions", s.handleActions)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("bridge: server is nil")
	}
	if s.driver == nil {
		return fmt.Errorf("bridge: driver is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("bridge: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: s.settings.ReadTimeout,
		IdleTimeout: s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logbook.Error("bridge: serve error: %v", err)
		}
	}()
	s.logbook.Info("bridge: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Session       string `json:"session"`
	SessionStatus string `json:"session_status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type actionResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	View   View   `json:"view"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	st := s.snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		Session:       st.ID,
		SessionStatus: string(st.Status),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.actions.Lock()
	view := NewView(s.driver.State(), s.driver.Help())
	s.actions.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}
	var req ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	action, err := req.Action()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.actions.Lock()
	handleErr := s.driver.Handle(action)
	st := s.driver.State()
	view := NewView(st, s.driver.Help())
	s.actions.Unlock()

	update := Update{Session: st.ID, Status: string(st.Status), Action: proposal.ActionName(action), Time: s.clock()}
	resp := actionResponse{Status: "ok", View: view}
	code := http.StatusOK
	if handleErr != nil {
		update.Error = handleErr.Error()
		resp.Status = "rejected"
		resp.Error = handleErr.Error()
		code = statusFor(handleErr)
		s.logbook.Warn("bridge: action %s rejected: %v", proposal.ActionName(action), handleErr)
	}
	s.hub.Publish(update)
	writeJSON(w, code, resp)
}

// handleEvents streams hub updates as server-sent events until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	sub := s.hub.Subscribe()
	defer sub.Close()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-sub.Updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: update\ndata: %s\n\n", update.Sequence, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) snapshot() session.State {
	s.actions.Lock()
	defer s.actions.Unlock()
	return s.driver.State()
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, proposal.ErrUnknownLink), errors.Is(err, proposal.ErrUnknownTab):
		return http.StatusNotFound
	case errors.Is(err, proposal.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, proposal.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, proposal.ErrBlocked),
		errors.Is(err, proposal.ErrConfirmationRequired),
		errors.Is(err, proposal.ErrSkipDisabled):
		return http.StatusConflict
	case errors.Is(err, proposal.ErrWriteFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
