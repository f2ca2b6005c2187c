// Package session is the single source of truth for who is logged in to the
// console. It owns the persisted token pair and publishes every change of the
// current principal to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/pkg/auth"
	"github.com/ragdesk/console/internal/reactive"
)

// ErrSuperseded is returned when a login or refresh resolved after the
// credentials it was started with were replaced or revoked. Its result is
// discarded.
var ErrSuperseded = errors.New("session changed while request was in flight")

// State is an immutable snapshot of the session.
type State struct {
	Principal *domain.Principal
	pending   int
}

// Authenticated reports whether a principal is present.
func (s State) Authenticated() bool {
	return s.Principal != nil
}

// Loading reports whether the initial restore or a login/refresh is in flight.
func (s State) Loading() bool {
	return s.pending > 0
}

// Role returns the current principal's role, RoleNone when logged out.
func (s State) Role() domain.Role {
	return domain.RoleOf(s.Principal)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithLandingPaths sets where Navigate is pointed after login and logout.
func WithLandingPaths(authenticated, unauthenticated string) Option {
	return func(s *Store) {
		s.authLanding = authenticated
		s.unauthLanding = unauthenticated
	}
}

// WithSkipExpiredTokens controls whether Init drops a persisted JWT whose exp
// has passed without calling the backend.
func WithSkipExpiredTokens(skip bool) Option {
	return func(s *Store) {
		s.skipExpired = skip
	}
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRefreshTimeout bounds a Refresh. The backend call is detached from the
// caller's context, so this is the only deadline it runs under. Non-positive
// values keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// Store holds the current principal.
type Store struct {
	api    ports.AuthAPI
	tokens ports.TokenStore
	nav    ports.Navigator
	logger *slog.Logger
	tracer trace.Tracer

	authLanding    string
	unauthLanding  string
	skipExpired    bool
	refreshTimeout time.Duration
	now            func() time.Time

	state    *reactive.Observable[State]
	refresh  singleflight.Group
	initOnce sync.Once

	// mu serializes commits (token writes plus state replacement); it is
	// never held across a backend call.
	mu sync.Mutex
	// epoch changes whenever the credentials are replaced or revoked.
	epoch uint64
	// logouts counts Logout calls. A login commits unless it changed.
	logouts uint64
}

// New creates a Store. The store starts in the loading state until Init
// completes.
func New(api ports.AuthAPI, tokens ports.TokenStore, nav ports.Navigator, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("auth api required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store required")
	}
	if nav == nil {
		return nil, fmt.Errorf("navigator required")
	}

	s := &Store{
		api:            api,
		tokens:         tokens,
		nav:            nav,
		logger:         slog.Default(),
		tracer:         otel.Tracer("github.com/ragdesk/console/internal/session"),
		authLanding:    "/dashboard",
		unauthLanding:  "/login",
		skipExpired:    true,
		refreshTimeout: 30 * time.Second,
		now:            time.Now,
		state:          reactive.New(State{pending: 1}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current snapshot.
func (s *Store) State() State {
	return s.state.Get()
}

// Principal returns the current principal, nil when logged out. The returned
// value is shared and must not be modified.
func (s *Store) Principal() *domain.Principal {
	return s.state.Get().Principal
}

// Authenticated reports whether a principal is present.
func (s *Store) Authenticated() bool {
	return s.state.Get().Authenticated()
}

// Subscribe registers fn for every session change. fn must not call Login,
// Logout or Refresh synchronously.
func (s *Store) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

// AccessToken returns the persisted access token, or "" when there is none.
func (s *Store) AccessToken() string {
	token, err := s.tokens.Get(domain.AccessTokenKey)
	if err != nil {
		if !errors.Is(err, ports.ErrTokenNotFound) {
			s.logger.Warn("failed to read access token", slog.String("error", err.Error()))
		}
		return ""
	}
	return token
}

// Init restores the session from persisted credentials. It runs once; later
// calls return immediately. Loading is false when Init returns, whatever the
// outcome.
func (s *Store) Init(ctx context.Context) {
	s.initOnce.Do(func() {
		defer s.state.Update(func(st State) State {
			st.pending--
			return st
		})

		ctx, span := s.tracer.Start(ctx, "session.Init")
		defer span.End()

		token, err := s.tokens.Get(domain.AccessTokenKey)
		if err != nil {
			if !errors.Is(err, ports.ErrTokenNotFound) {
				s.logger.Warn("failed to read persisted credentials", slog.String("error", err.Error()))
			}
			span.SetAttributes(attribute.String("session.restore", "no_credentials"))
			return
		}

		if s.skipExpired && auth.Expired(token, s.now()) {
			s.logger.Info("persisted access token expired, clearing session")
			span.SetAttributes(attribute.String("session.restore", "expired"))
			s.mu.Lock()
			s.removeTokensLocked()
			s.mu.Unlock()
			return
		}

		if err := s.Refresh(ctx); err != nil {
			s.logger.Info("session restore failed", slog.String("error", err.Error()))
			span.SetAttributes(attribute.String("session.restore", "failed"))
			return
		}
		span.SetAttributes(attribute.String("session.restore", "ok"))
	})
}

// Login exchanges credentials for a session. On success the token pair is
// persisted, the principal is published and the navigator is sent to the
// authenticated landing path. On failure the session is left untouched and
// the error is returned.
//
// Overlapping logins all commit in the order they resolve, so the last one
// to resolve wins. A login that resolves after a Logout is discarded.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (*domain.Principal, error) {
	ctx, span := s.tracer.Start(ctx, "session.Login")
	defer span.End()

	_, logouts := s.begin()

	res, err := s.api.Login(ctx, creds)
	if err == nil {
		err = validateLogin(res)
	}
	if err != nil {
		s.end()
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		s.logger.Info("login failed", slog.String("error", err.Error()))
		return nil, err
	}

	p := res.Principal

	s.mu.Lock()
	if s.logouts != logouts {
		s.mu.Unlock()
		s.end()
		span.SetStatus(codes.Error, "superseded")
		return nil, ErrSuperseded
	}
	if err := s.persistTokensLocked(res.AccessToken, res.RefreshToken); err != nil {
		s.mu.Unlock()
		s.end()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist tokens")
		return nil, err
	}
	s.epoch++
	s.state.Update(func(st State) State {
		st.Principal = p
		st.pending--
		return st
	})
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("principal.id", p.ID),
		attribute.String("principal.role", string(p.Role)),
	)
	s.logger.Info("logged in",
		slog.String("principal_id", p.ID),
		slog.String("role", string(p.Role)))

	s.nav.Navigate(s.authLanding)
	return p.Clone(), nil
}

// Logout revokes the session on the backend on a best-effort basis, then
// always clears the principal and the persisted tokens and sends the
// navigator to the unauthenticated landing path. Any login or refresh still
// in flight is discarded when it resolves.
func (s *Store) Logout(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "session.Logout")
	defer span.End()

	if err := s.api.Logout(ctx); err != nil {
		span.RecordError(err)
		s.logger.Warn("remote logout failed, clearing local session anyway",
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.epoch++
	s.logouts++
	s.removeTokensLocked()
	s.state.Update(func(st State) State {
		st.Principal = nil
		return st
	})
	s.mu.Unlock()

	s.logger.Info("logged out")
	s.nav.Navigate(s.unauthLanding)
}

// Refresh re-fetches the current principal using the persisted access token.
// Success replaces the principal; any failure clears it. Credential failures
// also delete the persisted tokens, transport failures keep them so a later
// Refresh can recover. Concurrent calls share one backend request.
//
// The shared request does not inherit cancellation from any caller. A caller
// whose ctx is done stops waiting and gets ctx.Err(); the session is only
// changed by the outcome of the backend call.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return nil, s.doRefresh(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) doRefresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	epoch, _ := s.begin()

	var p *domain.Principal
	_, err := s.tokens.Get(domain.AccessTokenKey)
	switch {
	case errors.Is(err, ports.ErrTokenNotFound):
		err = domain.ErrNoCredentials
	case err != nil:
		err = fmt.Errorf("read access token: %w", err)
	default:
		p, err = s.api.CurrentPrincipal(ctx)
		if err == nil {
			if p != nil {
				p = p.Clone()
				p.Normalize()
			}
			err = p.Validate()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.state.Update(func(st State) State {
			st.pending--
			return st
		})
		span.SetStatus(codes.Error, "superseded")
		return ErrSuperseded
	}

	if err != nil {
		credential := domain.IsCredentialFailure(err)
		if credential {
			s.removeTokensLocked()
		}
		s.state.Update(func(st State) State {
			st.Principal = nil
			st.pending--
			return st
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		span.SetAttributes(attribute.Bool("session.credential_failure", credential))
		return fmt.Errorf("refresh session: %w", err)
	}

	s.state.Update(func(st State) State {
		st.Principal = p
		st.pending--
		return st
	})
	span.SetAttributes(attribute.String("principal.id", p.ID))
	return nil
}

// begin marks an operation in flight and returns the credential epoch and
// logout count it started under.
func (s *Store) begin() (epoch, logouts uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Update(func(st State) State {
		st.pending++
		return st
	})
	return s.epoch, s.logouts
}

func (s *Store) end() {
	s.state.Update(func(st State) State {
		st.pending--
		return st
	})
}

func (s *Store) persistTokensLocked(access, refresh string) error {
	if err := s.tokens.Set(domain.AccessTokenKey, access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := s.tokens.Set(domain.RefreshTokenKey, refresh); err != nil {
		s.removeTokensLocked()
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

func (s *Store) removeTokensLocked() {
	for _, key := range []string{domain.AccessTokenKey, domain.RefreshTokenKey} {
		if err := s.tokens.Remove(key); err != nil {
			s.logger.Error("failed to remove persisted token",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

func validateLogin(res *domain.LoginResult) error {
	if res == nil {
		return domain.ErrServer("empty login response")
	}
	if res.AccessToken == "" {
		return domain.ErrServer("login response has no access token")
	}
	if res.Principal == nil {
		return domain.ErrServer("login response has no user")
	}
	p := res.Principal.Clone()
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	res.Principal = p
	return nil
}
