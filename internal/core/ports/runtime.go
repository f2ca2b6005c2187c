// Package ports defines the boundary interfaces of the console core.
package ports

import (
	"context"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based (default), static.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// AuthAPI is the authentication half of the backend API.
type AuthAPI interface {
	// Login exchanges credentials for a principal and a token pair.
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	// Logout revokes the current session on the backend.
	Logout(ctx context.Context) error
	// CurrentPrincipal returns the principal the current access token belongs to.
	CurrentPrincipal(ctx context.Context) (*domain.Principal, error)
}

// TenantAPI is the tenant half of the backend API.
type TenantAPI interface {
	GetTenant(ctx context.Context, tenantID string) (*domain.TenantRecord, error)
	UpdateTenant(ctx context.Context, tenantID string, patch domain.TenantPatch) (*domain.TenantRecord, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, patch domain.SettingsPatch) (*domain.TenantRecord, error)
}

// APIClient is the full backend API surface the console depends on.
// Implementations: HTTP (default).
type APIClient interface {
	AuthAPI
	TenantAPI
}

// TokenSource yields the bearer token to attach to API calls.
type TokenSource interface {
	AccessToken() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

// AccessToken implements TokenSource.
func (f TokenSourceFunc) AccessToken() string { return f() }

// TokenStore is durable key/value storage for credentials. Calls are
// synchronous. Get returns ErrTokenNotFound for a missing key.
// Implementations: SQLite (default), memory.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Navigator performs the full-page redirect side effect after login and
// logout.
// Implementations: broadcast to connected UIs, log-only.
type Navigator interface {
	Navigate(path string)
}
