// Package server implements the public HTTP surface: the
// administrative create endpoint, the resolve route, and the static
// file fallback.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hfi/authproxy/internal/audit"
	"github.com/hfi/authproxy/internal/config"
	"github.com/hfi/authproxy/internal/mapping"
	"github.com/hfi/authproxy/internal/resolver"
)

// Resolver is what the request layer needs from the proxy cache
// resolver.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*resolver.Result, error)
}

// Server is the public HTTP server.
type Server struct {
	listen   string
	baseURL  string
	users    []config.AdminUser
	store    mapping.Store
	resolver Resolver
	audit    *audit.Logger
	static   http.Handler
	server   *http.Server
	log      zerolog.Logger
}

// New wires the public server from its dependencies. baseURL must end
// with a slash; config validation guarantees that.
func New(cfg config.ServerConfig, users []config.AdminUser, store mapping.Store, res Resolver, auditLog *audit.Logger) *Server {
	s := &Server{
		listen:   cfg.Listen,
		baseURL:  cfg.BaseURL,
		users:    users,
		store:    store,
		resolver: res,
		audit:    auditLog,
		static:   http.FileServer(http.Dir(cfg.StaticDir)),
		log:      log.With().Str("component", "server").Logger(),
	}

	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// routes builds the router. Order matters: the admin route and the
// static root are checked before the identifier route, and anything
// deeper than one path segment goes straight to the static handler.
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", s.requireAdmin(http.HandlerFunc(s.handleCreate))).Methods(http.MethodPost)
	r.Handle("/", s.static)
	r.HandleFunc("/{id}", s.handleResolve)
	r.PathPrefix("/").Handler(s.static)

	return r
}

// Start listens for requests until the server is stopped.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.listen).Msg("public server listening")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
