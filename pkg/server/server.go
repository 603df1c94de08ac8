// Package server exposes the engine over HTTP for a local UI. Read paths
// serve the in-memory snapshot only; mutating paths run the full commit
// pipeline and are serialized, keeping the single-writer model.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/emilsk/kasa/pkg/coordinator"
	"github.com/emilsk/kasa/pkg/ledger"
	"github.com/emilsk/kasa/pkg/parser"
	"github.com/emilsk/kasa/pkg/report"
)

// Server handles HTTP requests against one user's ledger.
type Server struct {
	logger *log.Logger
	parser *parser.Parser
	coord  *coordinator.Coordinator
	mux    *http.ServeMux

	mu sync.Mutex // serializes mutating pipeline runs
}

func New(logger *log.Logger, p *parser.Parser, coord *coordinator.Coordinator) *Server {
	return &Server{
		logger: logger,
		parser: p,
		coord:  coord,
		mux:    http.NewServeMux(),
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.setupRoutes()
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/snapshot", s.withLogging(s.handleSnapshot))
	s.mux.HandleFunc("/api/report", s.withLogging(s.handleReport))
	s.mux.HandleFunc("/api/import", s.withLogging(s.handleImport))
	s.mux.HandleFunc("/api/category", s.withLogging(s.handleCategory))
	s.mux.HandleFunc("/api/hidden", s.withLogging(s.handleHidden))
	s.mux.HandleFunc("/api/notes", s.withLogging(s.handleNotes))
}

func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	s.respondJSON(w, s.coord.Snapshot())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	s.respondJSON(w, report.Build(s.coord.Snapshot()))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "missing statement file", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "reading statement file", err)
		return
	}

	records, err := s.parser.ProcessBytes(data, header.Filename)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "statement not parseable", err)
		return
	}

	s.mu.Lock()
	mergeReport, err := s.coord.Import(r.Context(), records)
	s.mu.Unlock()
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	s.respondJSON(w, mergeReport)
}

type categoryRequest struct {
	ID                 string `json:"id"`
	Category           string `json:"category"`
	ScopeToTransaction bool   `json:"scope_to_transaction"`
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !s.decodePost(w, r, &req) {
		return
	}

	s.mu.Lock()
	var err error
	if req.Category == "" {
		err = s.coord.ClearCategory(r.Context(), req.ID)
	} else {
		err = s.coord.SetCategory(r.Context(), req.ID, req.Category, req.ScopeToTransaction)
	}
	s.mu.Unlock()
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]string{"status": "ok"})
}

type hiddenRequest struct {
	ID     string `json:"id"`
	Hidden bool   `json:"hidden"`
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	var req hiddenRequest
	if !s.decodePost(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.coord.SetHidden(r.Context(), req.ID, req.Hidden)
	s.mu.Unlock()
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]string{"status": "ok"})
}

type notesRequest struct {
	ID    string `json:"id"`
	Notes string `json:"notes"`
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !s.decodePost(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.coord.SetNotes(r.Context(), req.ID, req.Notes)
	s.mu.Unlock()
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) decodePost(w http.ResponseWriter, r *http.Request, into any) bool {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// respondPipelineError maps engine errors onto status codes specific enough
// for the UI to render a useful message.
func (s *Server) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *ledger.NotFoundError
	var importErr *ledger.ImportError
	var conflict *coordinator.SyncConflictError

	switch {
	case errors.As(err, &notFound):
		s.respondError(w, r, http.StatusNotFound, err.Error(), err)
	case errors.As(err, &importErr):
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error(), err)
	case errors.As(err, &conflict):
		s.respondError(w, r, http.StatusConflict, err.Error(), err)
	default:
		s.respondError(w, r, http.StatusBadGateway, err.Error(), err)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	s.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
