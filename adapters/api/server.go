// Package api serves the stores over HTTP.
//
// Values are addressed by their identifier below the prefix a store is
// mounted at:
//
//	GET    /entities?path=providers/sql   list identifiers below a path
//	GET    /entities/providers/sql/my-id  read a value
//	PUT    /entities/providers/sql/my-id  replace a value
//	PATCH  /entities/providers/sql/my-id  merge a partial value
//	DELETE /entities/providers/sql/my-id  delete a value
//	POST   /reload                        request a reload
//
// Request bodies are JSON unless the Content-Type names YAML.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/kv"
	"github.com/codewandler/entstore/internal/codec"
)

const maxBodySize = 4 << 20

// Store is the part of kv.Store the API serves.
type Store[T any] interface {
	Has(id es.Identifier) bool
	Get(id es.Identifier) (T, bool)
	Identifiers(path ...string) []es.Identifier
	Put(ctx context.Context, id es.Identifier, v T) *es.Future[T]
	Delete(ctx context.Context, id es.Identifier) *es.Future[T]
	Patch(ctx context.Context, id string, partial map[string]any, path ...string) (*es.Future[T], error)
}

// Reloader is implemented by event stores that accept reload requests.
type Reloader interface {
	Reload(eventType string, filter es.EventFilter) error
}

type Server struct {
	router       chi.Router
	log          *slog.Logger
	metrics      Metrics
	writeTimeout time.Duration
}

func NewServer(opts ...Option) *Server {
	options := newServerOpts(opts...)
	s := &Server{
		router:       chi.NewRouter(),
		log:          options.log.With(slog.String("component", "api")),
		metrics:      options.metrics,
		writeTimeout: options.writeTimeout,
	}

	s.router.Use(middleware.RequestID, s.instrument, middleware.Recoverer)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Mount serves store below prefix.
func Mount[T any](s *Server, prefix string, store Store[T]) {
	h := &storeHandler[T]{server: s, store: store}
	s.router.Route(prefix, func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/*", h.get)
		r.Put("/*", h.put)
		r.Patch("/*", h.patch)
		r.Delete("/*", h.delete)
	})
}

// MountReload serves POST /reload, which forwards an es.ReloadEvent to rl.
func (s *Server) MountReload(rl Reloader) {
	s.router.Post("/reload", func(w http.ResponseWriter, r *http.Request) {
		var req es.ReloadEvent
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %w", es.ErrInvalidArgument, err))
			return
		}
		if req.Type == "" {
			s.writeError(w, r, fmt.Errorf("%w: reload without type", es.ErrInvalidArgument))
			return
		}
		if len(req.Filter.EntityTypes) == 0 {
			req.Filter.EntityTypes = []string{es.Wildcard}
		}
		if len(req.Filter.IDs) == 0 {
			req.Filter.IDs = []string{es.Wildcard}
		}
		if err := rl.Reload(req.Type, req.Filter); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RequestDuration(route, r.Method).ObserveDuration()
		s.metrics.RequestCompleted(route, r.Method, status)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// === store handler ===

type storeHandler[T any] struct {
	server *Server
	store  Store[T]
}

type listResponse struct {
	Identifiers []string `json:"identifiers"`
}

func (h *storeHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	var path []string
	if p := strings.Trim(r.URL.Query().Get("path"), es.IdentifierSeparator); p != "" {
		path = strings.Split(p, es.IdentifierSeparator)
	}
	ids := h.store.Identifiers(path...)
	res := listResponse{Identifiers: make([]string, len(ids))}
	for i, id := range ids {
		res.Identifiers[i] = id.String()
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *storeHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	v, ok := h.store.Get(id)
	if !ok {
		h.server.writeError(w, r, fmt.Errorf("%w: %s", es.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *storeHandler[T]) put(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	var v T
	if err := decodeBody(r, &v); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.await(w, r, h.store.Put(r.Context(), id, v))
}

func (h *storeHandler[T]) patch(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	if !h.store.Has(id) {
		h.server.writeError(w, r, fmt.Errorf("%w: %s", es.ErrNotFound, id))
		return
	}
	var partial map[string]any
	if err := decodeBody(r, &partial); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	f, err := h.store.Patch(r.Context(), id.ID(), partial, id.Path()...)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.await(w, r, f)
}

func (h *storeHandler[T]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.server.writeTimeout)
	defer cancel()
	if _, _, err := h.store.Delete(ctx, id).Await(ctx); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *storeHandler[T]) await(w http.ResponseWriter, r *http.Request, f *es.Future[T]) {
	ctx, cancel := context.WithTimeout(r.Context(), h.server.writeTimeout)
	defer cancel()
	v, ok, err := f.Await(ctx)
	switch {
	case err != nil:
		h.server.writeError(w, r, err)
	case !ok:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// === helpers ===

func identifierParam(r *http.Request) (es.Identifier, error) {
	return es.ParseIdentifier(chi.URLParam(r, "*"))
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", es.ErrInvalidArgument, err)
	}
	var c codec.Codec = codec.JSONCodec{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return fmt.Errorf("%w: %w", es.ErrInvalidArgument, err)
		}
		if strings.HasSuffix(mediaType, "yaml") {
			c = codec.YAMLCodec{}
		}
	}
	if err := c.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", es.ErrInvalidArgument, err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, es.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, es.ErrInvalidArgument),
		errors.Is(err, es.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, es.ErrDecode),
		errors.Is(err, es.ErrEncode),
		errors.Is(err, es.ErrValidation),
		errors.Is(err, es.ErrUnknownType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, es.ErrStoreRejected),
		errors.Is(err, es.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Store[any] = (*kv.Store[any])(nil)
