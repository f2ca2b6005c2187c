// Package server exposes the console's session, tenant and permission state
// to UIs over HTTP and Server-Sent Events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ragdesk/console/internal/adapters/navigation"
	"github.com/ragdesk/console/internal/permission"
	"github.com/ragdesk/console/internal/pkg/config"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/tenant"
)

// Options wires a Server to the application's stores.
type Options struct {
	Config     config.ServerConfig
	Session    *session.Store
	Tenant     *tenant.Resolver
	Settings   *tenant.SettingsService
	Navigation *navigation.Broadcaster
	Logger     *slog.Logger
}

type Server struct {
	Router chi.Router
	Addr   string

	settings   *tenant.SettingsService
	navigation *navigation.Broadcaster
	logger     *slog.Logger
	httpServer *http.Server

	// closing ends open event streams on Shutdown.
	closing   chan struct{}
	closeOnce sync.Once
}

func New(opts Options) (*Server, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session store required")
	}
	if opts.Tenant == nil || opts.Settings == nil {
		return nil, fmt.Errorf("tenant resolver and settings service required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Addr:       opts.Config.Addr(),
		settings:   opts.Settings,
		navigation: opts.Navigation,
		logger:     logger,
		closing:    make(chan struct{}),
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	if len(opts.Config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.Config.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "ragdesk-console")
	})
	r.Use(ScopeMiddleware(opts.Session, opts.Tenant))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(opts.Config.RequestTimeout))

			r.Get("/session", s.handleGetSession)
			r.Post("/session/login", s.handleLogin)
			r.Post("/session/logout", s.handleLogout)
			r.Post("/session/refresh", s.handleRefresh)

			r.Get("/tenant", s.handleGetTenant)
			r.Post("/tenant/reload", s.handleReloadTenant)
			r.With(RequireCapability(permission.CanManageTenantSettings)).
				Patch("/tenant/settings", s.handleUpdateSettings)
			r.With(RequireCapability(permission.CanManageTenantSettings)).
				Patch("/tenant", s.handleUpdateTenant)

			r.Get("/permissions", s.handlePermissions)
		})
	})

	s.Router = r
	s.httpServer = &http.Server{
		Addr:              s.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes open event streams, stops accepting connections and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return err
	}
	return nil
}
