// Package server exposes the active recording session over HTTP so it can be
// paused, resumed or finished from another device.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/audiolibrelab/screencap/internal/session"
)

// Session is the part of a session controller the API drives.
type Session interface {
	State() session.State
	Elapsed() time.Duration
	OutputPath() string
	Pause() error
	Resume() error
	Stop() error
}

// Server serves the remote control API.
type Server struct {
	current   func() Session
	lastError func() string
	addr      string
	http      *http.Server
	ln        net.Listener
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	State     string `json:"state"`
	Elapsed   string `json:"elapsed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Output    string `json:"output,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// New creates a server listening on addr. current returns the active session
// or nil, lastError the message of the last failed session (may be nil).
func New(addr string, current func() Session, lastError func() string) *Server {
	if lastError == nil {
		lastError = func() string { return "" }
	}
	s := &Server{current: current, lastError: lastError, addr: addr}
	s.http = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/pause", s.handlePause).Methods("POST")
	r.HandleFunc("/api/resume", s.handleResume).Methods("POST")
	r.HandleFunc("/api/finish", s.handleFinish).Methods("POST")

	r.Use(loggingMiddleware)
	return r
}

// Start listens and serves in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Remote control server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
	}()

	slog.Info("Remote control listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeJSON(w, http.StatusOK, StatusResponse{
			State:     string(session.StateIdle),
			Elapsed:   session.FormatElapsed(0),
			LastError: s.lastError(),
		})
		return
	}

	elapsed := sess.Elapsed()
	writeJSON(w, http.StatusOK, StatusResponse{
		State:     string(sess.State()),
		Elapsed:   session.FormatElapsed(elapsed),
		ElapsedMs: elapsed.Milliseconds(),
		Output:    sess.OutputPath(),
		LastError: s.lastError(),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.command(w, "pause", Session.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.command(w, "resume", Session.Resume)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.command(w, "finish", Session.Stop)
}

func (s *Server) command(w http.ResponseWriter, name string, fn func(Session) error) {
	sess := s.current()
	if sess == nil {
		s.sendErrorResponse(w, http.StatusConflict, "no active recording", "operation", name)
		return
	}

	if err := fn(sess); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotRecording) || errors.Is(err, session.ErrNotActive) {
			status = http.StatusConflict
		}
		s.sendErrorResponse(w, status, err.Error(), "operation", name)
		return
	}

	writeJSON(w, http.StatusOK, GenericResponse{Success: true, State: string(sess.State())})
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...any) {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode}
	logFields = append(logFields, logContext...)
	slog.Debug("Rejecting remote command", logFields...)

	writeJSON(w, statusCode, GenericResponse{Success: false, Error: errorMsg})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Remote control request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
