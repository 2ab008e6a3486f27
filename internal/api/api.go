package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

const internalErrorMessage = "internal server error"

// Server provides the REST API handlers.
type Server struct {
	tracker *tracker.Service
	mcp     http.Handler
	ui      http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP transport at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithUIHandler serves h at the site root.
func WithUIHandler(h http.Handler) Option {
	return func(s *Server) { s.ui = h }
}

// NewServer creates a new API server.
func NewServer(svc *tracker.Service, opts ...Option) *Server {
	s := &Server{tracker: svc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/issues/{project}", s.listIssues)
	mux.HandleFunc("POST /api/issues/{project}", s.createIssue)
	mux.HandleFunc("PUT /api/issues/{project}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{project}", s.deleteIssue)

	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("GET /healthz", s.health)

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}
	if s.ui != nil {
		mux.Handle("GET /{$}", s.ui)
	}

	return logRequests(corsMiddleware(recoverPanics(mux)))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeInternal logs err and answers with a generic 500.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

// writeOutcome renders a tracker result. Refusals are ordinary 200 replies.
func writeOutcome(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		if rej, ok := tracker.AsRejection(err); ok {
			writeJSON(w, http.StatusOK, rej.Reply())
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decodeFields reads a JSON object or URL-encoded form body. An empty body
// yields no fields.
func decodeFields(w http.ResponseWriter, r *http.Request) (tracker.Fields, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return tracker.Fields{}, nil
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			slog.DebugContext(r.Context(), "unparseable content type", "content_type", ct, "error", err)
			return tracker.Fields{}, nil
		}
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		fields := make(tracker.Fields, len(values))
		for key, v := range values {
			if len(v) > 0 {
				fields[key] = v[0]
			}
		}
		return fields, nil
	case "", "application/json":
		var fields tracker.Fields
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode JSON body: %w", err)
		}
		if fields == nil {
			fields = tracker.Fields{}
		}
		return fields, nil
	default:
		// Bodies in other media types carry no fields.
		return tracker.Fields{}, nil
	}
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	filter := models.Filter(r.URL.Query())
	issues, err := s.tracker.List(r.Context(), project, filter)
	writeOutcome(w, r, issues, err)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	fields, err := decodeFields(w, r)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	issue, err := s.tracker.Create(r.Context(), project, fields)
	writeOutcome(w, r, issue, err)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	fields, err := decodeFields(w, r)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	reply, err := s.tracker.Update(r.Context(), project, fields)
	writeOutcome(w, r, reply, err)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	fields, err := decodeFields(w, r)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	reply, err := s.tracker.Delete(r.Context(), project, fields)
	writeOutcome(w, r, reply, err)
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	names, err := s.tracker.Projects(r.Context())
	writeOutcome(w, r, names, err)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
