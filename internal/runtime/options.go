package runtime

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/ragdesk/console/internal/adapters/config/file"
	"github.com/ragdesk/console/internal/adapters/config/static"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/pkg/config"
	"github.com/ragdesk/console/internal/storage/memory"
	"github.com/ragdesk/console/internal/storage/sqlite"
)

// Option is a functional option for configuring a Console.
type Option func(*Console) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a console.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(c *Console) error {
		provider, err := file.NewProvider(path, file.WithLogger(c.logger))
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		c.config = provider
		return nil
	}
}

// WithConfig uses a fixed configuration built in code.
func WithConfig(cfg *config.Config) Option {
	return func(c *Console) error {
		provider, err := static.NewProvider(cfg)
		if err != nil {
			return fmt.Errorf("create static config provider: %w", err)
		}
		c.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(c *Console) error {
		c.config = provider
		return nil
	}
}

// WithAPIClient sets the backend API client. By default an HTTP client is
// built from the api section of the configuration. A client with a
// SetTokenSource(ports.TokenSource) method is given the session as its
// bearer token source.
func WithAPIClient(client ports.APIClient) Option {
	return func(c *Console) error {
		c.api = client
		return nil
	}
}

// WithTokenStore sets a custom credential store. The console closes it on
// Shutdown; a restarted console opens the store named by the configuration.
func WithTokenStore(store ports.TokenStore) Option {
	return func(c *Console) error {
		c.tokens = store
		return nil
	}
}

// WithSQLiteTokens persists credentials in a SQLite database at path.
func WithSQLiteTokens(path string) Option {
	return func(c *Console) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite token store: %w", err)
		}
		c.tokens = store
		return nil
	}
}

// WithMemoryTokens keeps credentials in process memory only.
func WithMemoryTokens() Option {
	return func(c *Console) error {
		c.tokens = memory.New()
		return nil
	}
}

// WithNavigator forwards every post-login and post-logout redirect to nav in
// addition to connected UIs.
func WithNavigator(nav ports.Navigator) Option {
	return func(c *Console) error {
		c.nav = nav
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) error {
		c.logger = logger
		return nil
	}
}

// WithLogLevel lets configuration reloads change the level of the handler
// behind the logger.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(c *Console) error {
		c.level = level
		return nil
	}
}

// WithListener serves HTTP on ln instead of the configured address.
func WithListener(ln net.Listener) Option {
	return func(c *Console) error {
		c.listener = ln
		return nil
	}
}
