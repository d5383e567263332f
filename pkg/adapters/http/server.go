package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// MaxSnapshotSize bounds PUT bodies.
const MaxSnapshotSize = 1 << 20

// Server exposes definitions and a snapshot store over HTTP.
type Server struct {
	Loader  ports.DefinitionLoader
	Store   ports.Store
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. Either loader or store may be nil,
// in which case its routes answer 501.
func NewHandler(loader ports.DefinitionLoader, store ports.Store, opts ...Option) http.Handler {
	server := &Server{
		Loader:  loader,
		Store:   store,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/flows/{id}", server.GetFlow)
	r.Get("/keys", server.ListKeys)
	r.Get("/snapshot", server.GetSnapshot)
	r.Put("/snapshot", server.PutSnapshot)
	r.Delete("/snapshot", server.DeleteSnapshot)
	r.Get("/events", server.SubscribeEvents)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetFlow handles GET /flows/{id}?variant=.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	if s.Loader == nil {
		http.Error(w, "definitions are not served", http.StatusNotImplemented)
		return
	}

	id := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		// chi matched the escaped path.
		if unescaped, err := url.PathUnescape(id); err == nil {
			id = unescaped
		}
	}
	variant := r.URL.Query().Get("variant")

	def, err := s.Loader.Load(r.Context(), id, variant)
	if err != nil {
		if errors.Is(err, domain.ErrDefinitionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetFlow failed", "flow_id", id, "variant_id", variant, "error", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, def); err != nil {
		s.logger.Error("GetFlow response encode failed", "error", err)
	}
}

func (s *Server) snapshotKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.Store == nil {
		http.Error(w, "snapshots are not served", http.StatusNotImplemented)
		return "", false
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

// ListKeys handles GET /keys.
func (s *Server) ListKeys(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.Store.(ports.Lister)
	if !ok {
		http.Error(w, "store cannot list keys", http.StatusNotImplemented)
		return
	}
	keys, err := lister.Keys(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListKeys failed", "error", err)
		return
	}
	_ = writeJSON(w, http.StatusOK, keys)
}

// GetSnapshot handles GET /snapshot?key=.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	key, ok := s.snapshotKey(w, r)
	if !ok {
		return
	}

	value, err := s.Store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Get error: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetSnapshot failed", "key", key, "error", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, value)
}

// PutSnapshot handles PUT /snapshot?key=.
func (s *Server) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	key, ok := s.snapshotKey(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSnapshotSize+1))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutSnapshot: Invalid request body", "error", err)
		return
	}
	if len(body) > MaxSnapshotSize {
		http.Error(w, "snapshot too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.Store.Set(r.Context(), key, string(body)); err != nil {
		http.Error(w, fmt.Sprintf("Set error: %v", err), http.StatusInternalServerError)
		s.logger.Error("PutSnapshot failed", "key", key, "error", err)
		return
	}

	s.Streams.Broadcast(key, Event{Op: OpSet, Key: key})
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSnapshot handles DELETE /snapshot?key=.
func (s *Server) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	key, ok := s.snapshotKey(w, r)
	if !ok {
		return
	}

	if err := s.Store.Remove(r.Context(), key); err != nil {
		http.Error(w, fmt.Sprintf("Remove error: %v", err), http.StatusInternalServerError)
		s.logger.Error("DeleteSnapshot failed", "key", key, "error", err)
		return
	}

	s.Streams.Broadcast(key, Event{Op: OpRemove, Key: key})
	w.WriteHeader(http.StatusNoContent)
}
