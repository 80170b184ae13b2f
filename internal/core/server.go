// Package core provides the API chassis for the entitlement engine. It
// creates a chi router and enforces cross-cutting concerns -- recovery,
// request correlation, logging, session resolution, and the access gate --
// before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/config"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/quota"
	"github.com/fabricadosdjs/plataforma-musicas-sub011/internal/types"
)

// SessionResolver resolves an opaque session token into a claims bundle.
// The engine treats claims as hints only; authoritative account state is
// reloaded from the repository on every gated request.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (types.SessionClaims, error)
}

// AccountReader is the read side of the account repository, the subset
// the chassis needs to re-establish authoritative state per request.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (types.Account, error)
}

// Server encapsulates all dependencies for the API, allowing injection
// during testing and distinct configuration for different environments.
type Server struct {
	Config   *config.Config
	Runtime  *config.Runtime
	Logger   *slog.Logger
	Accounts AccountReader
	Tracker  *quota.Tracker
	Sessions SessionResolver

	// Clock supplies "now" for every request so tests can pin time.
	// Defaults to time.Now.
	Clock func() time.Time

	// V1RouteRegistrars are populated by the application entry point;
	// the indirection avoids import cycles between core and handlers.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It fails fast on missing critical dependencies. The caller is
// responsible for mounting routes after construction.
func NewServer(
	cfg *config.Config,
	rt *config.Runtime,
	accounts AccountReader,
	tracker *quota.Tracker,
	sessions SessionResolver,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if rt == nil {
		return nil, fmt.Errorf("runtime rules must not be nil")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account reader must not be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("quota tracker must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:   cfg,
		Runtime:  rt,
		Logger:   logger,
		Accounts: accounts,
		Tracker:  tracker,
		Sessions: sessions,
		Clock:    time.Now,
		router:   chi.NewRouter(),
	}, nil
}

// Now returns the current time from the injected clock.
func (s *Server) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if closer, ok := s.Accounts.(interface{ Close() }); ok {
		closer.Close()
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
