// Package runtime provides the core Console struct and lifecycle management
// for the RAG admin console.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"sync"

	"github.com/ragdesk/console/internal/adapters/api/httpapi"
	"github.com/ragdesk/console/internal/adapters/navigation"
	"github.com/ragdesk/console/internal/binding"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/pkg/config"
	"github.com/ragdesk/console/internal/server"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/storage/memory"
	"github.com/ragdesk/console/internal/storage/sqlite"
	"github.com/ragdesk/console/internal/tenant"
)

// Console is the main entry point for running the admin console core.
// It manages configuration, the session and tenant stores, and the HTTP
// server lifecycle. Console can be embedded in larger applications or run
// standalone.
type Console struct {
	// Dependencies (injected via options)
	config   ports.ConfigProvider
	api      ports.APIClient
	tokens   ports.TokenStore
	nav      ports.Navigator
	logger   *slog.Logger
	level    *slog.LevelVar
	listener net.Listener

	// Built by Start
	cfg        *config.Config
	navigation *navigation.Broadcaster
	session    *session.Store
	resolver   *tenant.Resolver
	settings   *tenant.SettingsService
	server     *server.Server
	addr       net.Addr

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	serving sync.WaitGroup
	mu      sync.RWMutex
}

// New creates a new Console with the given options.
func New(opts ...Option) (*Console, error) {
	c := &Console{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if c.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfig)")
	}
	return c, nil
}

// Start loads the configuration, restores the session, starts following the
// tenant and serves the HTTP API. Start returns once the listener is bound;
// serving continues in the background until Shutdown.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("console already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	cfg, err := c.config.Load(c.ctx)
	if err != nil {
		c.cancel()
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	if c.level != nil {
		c.level.Set(cfg.Log.SlogLevel())
	}

	if err := c.initStores(cfg); err != nil {
		c.closeTokens()
		c.cancel()
		return fmt.Errorf("init stores: %w", err)
	}

	if err := c.startServer(cfg); err != nil {
		c.resolver.Close()
		c.closeTokens()
		c.cancel()
		return fmt.Errorf("start server: %w", err)
	}
	c.started = true

	go c.watchConfig()

	c.logger.Info("console started",
		slog.String("addr", c.addr.String()),
		slog.String("api", cfg.API.BaseURL),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("authenticated", c.session.Authenticated()))

	return nil
}

// Shutdown gracefully stops the console in the reverse order of Start.
func (c *Console) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("shutting down console")

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			c.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		c.serving.Wait()
	}

	if c.resolver != nil {
		c.resolver.Close()
	}

	c.closeTokens()

	if c.config != nil {
		if err := c.config.Close(); err != nil {
			c.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	c.started = false
	c.logger.Info("console shutdown complete")
	return errors.Join(errs...)
}

// Session returns the session store, nil before Start.
func (c *Console) Session() *session.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Tenant returns the tenant resolver, nil before Start.
func (c *Console) Tenant() *tenant.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// Settings returns the tenant settings service, nil before Start.
func (c *Console) Settings() *tenant.SettingsService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Navigation returns the redirect broadcaster, nil before Start.
func (c *Console) Navigation() *navigation.Broadcaster {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.navigation
}

// Config returns the configuration in effect.
func (c *Console) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Addr returns the address the HTTP server is bound to, nil before Start.
func (c *Console) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// Scope installs the console's session store and tenant resolver into ctx so
// the binding accessors work for code running under it. It panics if the
// console has not been started.
func (c *Console) Scope(ctx context.Context) context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return binding.Install(ctx, c.session, c.resolver)
}

// initStores builds the token store, API client, session store and tenant
// resolver, then restores the session from persisted credentials.
func (c *Console) initStores(cfg *config.Config) error {
	if c.tokens == nil {
		switch cfg.Storage.Type {
		case "memory":
			c.tokens = memory.New()
		default:
			store, err := sqlite.New(cfg.Storage.SQLite.Path)
			if err != nil {
				return fmt.Errorf("open token store: %w", err)
			}
			c.tokens = store
		}
	}

	if c.api == nil {
		c.api = httpapi.NewClient(
			httpapi.WithBaseURL(cfg.API.BaseURL),
			httpapi.WithTimeout(cfg.API.Timeout),
		)
	}

	c.navigation = navigation.NewBroadcaster(c.logger)
	if c.nav != nil {
		nav := c.nav
		c.navigation.Subscribe(func(ev navigation.Event) {
			nav.Navigate(ev.Path)
		})
	}

	store, err := session.New(c.api, c.tokens, c.navigation,
		session.WithLogger(c.logger),
		session.WithLandingPaths(cfg.Navigation.AuthenticatedLanding, cfg.Navigation.UnauthenticatedLanding),
		session.WithSkipExpiredTokens(cfg.Session.SkipExpiredTokens),
		session.WithRefreshTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	c.session = store

	// The API client reads the bearer token from the session on every call.
	if setter, ok := c.api.(interface{ SetTokenSource(ports.TokenSource) }); ok {
		setter.SetTokenSource(store)
	}

	store.Init(c.ctx)

	resolver, err := tenant.NewResolver(c.api, store, tenant.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("create tenant resolver: %w", err)
	}
	c.resolver = resolver
	c.settings = tenant.NewSettingsService(c.api, resolver)
	resolver.Start(c.ctx)

	return nil
}

// closeTokens closes the token store and forgets it, so a later Start opens
// a fresh one from the storage section.
func (c *Console) closeTokens() {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Close(); err != nil {
		c.logger.Error("failed to close token store", slog.String("error", err.Error()))
	}
	c.tokens = nil
}

// startServer binds the listener and serves in the background.
func (c *Console) startServer(cfg *config.Config) error {
	srv, err := server.New(server.Options{
		Config:     cfg.Server,
		Session:    c.session,
		Tenant:     c.resolver,
		Settings:   c.settings,
		Navigation: c.navigation,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	ln := c.listener
	if ln == nil {
		ln, err = net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
	}
	c.server = srv
	c.addr = ln.Addr()

	c.serving.Add(1)
	go func() {
		defer c.serving.Done()
		if err := srv.Serve(ln); err != nil {
			c.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// watchConfig watches for config changes and reloads.
func (c *Console) watchConfig() {
	onChange := func(newCfg *config.Config) {
		c.logger.Info("config changed, reloading")
		c.reload(newCfg)
	}

	if err := c.config.Watch(c.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload applies the parts of cfg that can change while running. The log
// level is applied immediately; the other sections are recorded and take
// effect on the next start.
func (c *Console) reload(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.cfg
	c.cfg = cfg

	if c.level != nil {
		c.level.Set(cfg.Log.SlogLevel())
	}

	if changed := restartSections(prev, cfg); len(changed) > 0 {
		c.logger.Warn("config change requires restart to take effect",
			slog.Any("sections", changed))
	}

	c.logger.Info("reload complete", slog.String("log_level", cfg.Log.SlogLevel().String()))
}

// restartSections lists the sections of next that differ from prev and are
// only read at startup.
func restartSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	sections := []struct {
		name       string
		prev, next any
	}{
		{"server", prev.Server, next.Server},
		{"api", prev.API, next.API},
		{"storage", prev.Storage, next.Storage},
		{"navigation", prev.Navigation, next.Navigation},
		{"session", prev.Session, next.Session},
		{"telemetry", prev.Telemetry, next.Telemetry},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.prev, s.next) {
			changed = append(changed, s.name)
		}
	}
	return changed
}
