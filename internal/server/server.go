// Package server exposes the conformance core to dashboard frontends as a
// JSON API. Every request recomputes from the cached immutable snapshot;
// the handlers hold no state of their own.
package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/schema"
	"github.com/coilforge/coilqa-cli/internal/source"
)

// Server wires the data cache, schema adapter, and analysis config behind
// the HTTP API.
type Server struct {
	cache   *source.Cache
	adapter *schema.Adapter
	cfg     conformance.Config
}

// New builds a Server. cfg is the default analysis configuration; individual
// requests may override the verdict policy via query parameters.
func New(cache *source.Cache, adapter *schema.Adapter, cfg conformance.Config) *Server {
	return &Server{cache: cache, adapter: adapter, cfg: cfg}
}

// Router assembles the chi route tree with the standard middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/records", s.handleRecords)
		r.Get("/groups", s.handleGroups)
		r.Get("/distribution", s.handleDistribution)
		r.Get("/warnings", s.handleWarnings)
		r.Post("/cache/invalidate", s.handleInvalidate)
	})
	return r
}

// APIResponse is the uniform JSON envelope.
type APIResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   any    `json:"data,omitempty"`
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "ok", Data: data})
}

func respondErr(w http.ResponseWriter, r *http.Request, code int, err error) {
	render.Status(r, code)
	render.JSON(w, r, APIResponse{Status: code, Msg: err.Error()})
}

// analyze loads the snapshot and runs one full pass with the given config.
func (s *Server) analyze(r *http.Request, cfg conformance.Config) (*conformance.Result, *source.Snapshot, error) {
	snap, err := s.cache.Load(r.Context())
	if err != nil {
		return nil, nil, err
	}
	ds, err := s.adapter.Dataset(snap.Table.Header, snap.Table.Rows)
	if err != nil {
		return nil, nil, err
	}
	return conformance.Run(ds, cfg), snap, nil
}

// errStatus maps core errors to HTTP codes: schema failures are the client's
// view problem (422), fetch failures are upstream (502).
func errStatus(err error) int {
	var mf *schema.MissingFieldError
	if errors.As(err, &mf) {
		return http.StatusUnprocessableEntity
	}
	var he *source.HTTPError
	if errors.As(err, &he) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
