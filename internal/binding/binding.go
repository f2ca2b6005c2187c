// Package binding installs the application's session store and tenant
// resolver into a context and gives consumers typed accessors for them.
//
// Reading the session or tenant from a context where no scope was installed
// is a wiring mistake, not a logged-out state. The Use* and store accessors
// panic with a *ConfigError in that case; the Lookup* variants return it.
package binding

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/permission"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/tenant"
)

var (
	// ErrNotInstalled means no scope, or no tenant resolver, was installed in
	// the context chain.
	ErrNotInstalled = errors.New("binding scope not installed")
	// ErrAlreadyInstalled means Install was called on a context that already
	// carries a scope.
	ErrAlreadyInstalled = errors.New("binding scope already installed")
)

// ConfigError reports a binding misuse.
type ConfigError struct {
	Accessor string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("binding: %s: %v", e.Accessor, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type scope struct {
	session *session.Store
	tenant  *tenant.Resolver
}

type scopeKey struct{}

// Install returns a context carrying the application's session store and
// tenant resolver. The resolver may be nil when the application runs without
// one. Install panics if store is nil or ctx already carries a scope.
func Install(ctx context.Context, store *session.Store, resolver *tenant.Resolver) context.Context {
	if store == nil {
		panic(&ConfigError{Accessor: "Install", Err: errors.New("session store is nil")})
	}
	if _, ok := ctx.Value(scopeKey{}).(*scope); ok {
		panic(&ConfigError{Accessor: "Install", Err: ErrAlreadyInstalled})
	}
	return context.WithValue(ctx, scopeKey{}, &scope{session: store, tenant: resolver})
}

// Installed reports whether ctx carries a scope.
func Installed(ctx context.Context) bool {
	_, ok := ctx.Value(scopeKey{}).(*scope)
	return ok
}

func lookup(ctx context.Context, accessor string) (*scope, error) {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil, &ConfigError{Accessor: accessor, Err: ErrNotInstalled}
	}
	return sc, nil
}

// LookupSession returns the installed session store.
func LookupSession(ctx context.Context) (*session.Store, error) {
	sc, err := lookup(ctx, "SessionStore")
	if err != nil {
		return nil, err
	}
	return sc.session, nil
}

// LookupTenant returns the installed tenant resolver.
func LookupTenant(ctx context.Context) (*tenant.Resolver, error) {
	sc, err := lookup(ctx, "TenantResolver")
	if err != nil {
		return nil, err
	}
	if sc.tenant == nil {
		return nil, &ConfigError{Accessor: "TenantResolver", Err: fmt.Errorf("tenant resolver: %w", ErrNotInstalled)}
	}
	return sc.tenant, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// SessionStore returns the installed session store or panics.
func SessionStore(ctx context.Context) *session.Store {
	return must(LookupSession(ctx))
}

// TenantResolver returns the installed tenant resolver or panics.
func TenantResolver(ctx context.Context) *tenant.Resolver {
	return must(LookupTenant(ctx))
}

// UseSession returns the current session snapshot.
func UseSession(ctx context.Context) session.State {
	return SessionStore(ctx).State()
}

// UseTenant returns the current tenant snapshot.
func UseTenant(ctx context.Context) tenant.State {
	return TenantResolver(ctx).State()
}

// UsePermissions evaluates the capability set of the current principal's
// role, optionally against a target role. It is computed on every call.
func UsePermissions(ctx context.Context, target ...domain.Role) permission.Capabilities {
	return permission.Evaluate(UseSession(ctx).Role(), target...)
}

// WatchSession calls fn with every session change until the returned
// function is called.
func WatchSession(ctx context.Context, fn func(session.State)) func() {
	return SessionStore(ctx).Subscribe(fn)
}

// WatchTenant calls fn with every tenant change until the returned function
// is called.
func WatchTenant(ctx context.Context, fn func(tenant.State)) func() {
	return TenantResolver(ctx).Subscribe(fn)
}
