package session

import (
	"context"
	"sync"

	"github.com/ragdesk/console/internal/core/domain"
)

type fakeAuthAPI struct {
	mu sync.Mutex

	loginResult *domain.LoginResult
	loginErr    error
	loginCalls  int

	// Per-email overrides. A login whose email has a gate signals
	// loginStarted and blocks until the gate is closed.
	loginResults map[string]*domain.LoginResult
	loginGates   map[string]chan struct{}
	loginStarted chan string

	logoutErr   error
	logoutCalls int

	principal      *domain.Principal
	principalErr   error
	principalCalls int

	// When set, CurrentPrincipal signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeAuthAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	gate, started := f.loginGates[creds.Email], f.loginStarted
	f.mu.Unlock()

	if gate != nil {
		started <- creds.Email
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	result := f.loginResult
	if r, ok := f.loginResults[creds.Email]; ok {
		result = r
	}
	res := *result
	res.Principal = result.Principal.Clone()
	return &res, nil
}

func (f *fakeAuthAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAuthAPI) CurrentPrincipal(ctx context.Context) (*domain.Principal, error) {
	f.mu.Lock()
	f.principalCalls++
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.principalErr != nil {
		return nil, f.principalErr
	}
	return f.principal.Clone(), nil
}

func (f *fakeAuthAPI) calls() (login, logout, principal int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.logoutCalls, f.principalCalls
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

func strPtr(s string) *string { return &s }
