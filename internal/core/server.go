// Package core provides the HTTP chassis for the CDC bridge: the chi router,
// cross-cutting middleware (panic recovery, request IDs, request logging),
// JSON response helpers, and request validation. Domain handlers mount their
// routes through RouteRegistrar functions so core stays free of handler
// imports.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"graphbridge/internal/config"
)

// RouteRegistrar mounts a group of routes on the router. Handlers provide
// one so main.go can wire them without core importing handler packages.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with its cross-cutting dependencies, allowing
// injection during testing.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	router *chi.Mux
}

// NewServer builds the chassis with its middleware chain registered. Routes
// are mounted afterwards via MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}

	// Recoverer is outermost so panics anywhere in the chain become 500
	// responses instead of dropped connections.
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(logger))

	return s, nil
}

// MountRoutes registers all provided route groups on the router.
func (s *Server) MountRoutes(registrars ...RouteRegistrar) {
	for _, register := range registrars {
		register(s.router)
	}
}

// Handler returns the http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
