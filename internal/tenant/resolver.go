// Package tenant keeps the active tenant's record in sync with the session's
// tenant affiliation and routes settings mutations through a reload so every
// subscriber reads its writes.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/reactive"
	"github.com/ragdesk/console/internal/session"
)

// SessionSource is the part of the session store the resolver depends on.
type SessionSource interface {
	Principal() *domain.Principal
	Subscribe(fn func(session.State)) func()
}

// State is an immutable snapshot of the resolver.
type State struct {
	Tenant *domain.TenantRecord
	// Err is the human-readable message of the last failed fetch.
	Err      string
	inflight int
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool {
	return s.inflight > 0
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver holds the tenant record for the session's current affiliation.
type Resolver struct {
	api    ports.TenantAPI
	sess   SessionSource
	logger *slog.Logger
	tracer trace.Tracer

	state *reactive.Observable[State]

	mu          sync.Mutex
	started     bool
	closed      bool
	base        context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	// affiliation last seen from the session
	tenantID  string
	hasTenant bool
	wg        sync.WaitGroup
}

// NewResolver creates a Resolver. It does not follow the session until Start
// is called.
func NewResolver(api ports.TenantAPI, sess SessionSource, opts ...Option) (*Resolver, error) {
	if api == nil {
		return nil, fmt.Errorf("tenant api required")
	}
	if sess == nil {
		return nil, fmt.Errorf("session source required")
	}

	r := &Resolver{
		api:    api,
		sess:   sess,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/ragdesk/console/internal/tenant"),
		state:  reactive.New(State{}),
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the current snapshot.
func (r *Resolver) State() State {
	return r.state.Get()
}

// Tenant returns the current record, nil when there is none. The returned
// value is shared and must not be modified.
func (r *Resolver) Tenant() *domain.TenantRecord {
	return r.state.Get().Tenant
}

// Subscribe registers fn for every resolver change.
func (r *Resolver) Subscribe(fn func(State)) func() {
	return r.state.Subscribe(fn)
}

// Start follows the session: whenever its tenant affiliation changes the
// current record is discarded and a reload runs in the background. ctx bounds
// those background reloads.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.base = ctx
	r.mu.Unlock()

	unsubscribe := r.sess.Subscribe(func(st session.State) {
		r.follow(st.Principal)
	})

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	r.follow(r.sess.Principal())
}

// Close stops following the session, cancels background reloads and waits
// for them to return.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	unsubscribe := r.unsubscribe
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.wg.Wait()
}

// follow reacts to a session change. The old record is dropped before the
// fetch for the new affiliation starts.
func (r *Resolver) follow(p *domain.Principal) {
	id, ok := p.Tenant()

	r.mu.Lock()
	if r.closed || (ok == r.hasTenant && id == r.tenantID) {
		r.mu.Unlock()
		return
	}
	r.tenantID, r.hasTenant = id, ok
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	var ctx context.Context
	if ok {
		ctx, r.cancel = context.WithCancel(r.base)
		r.wg.Add(1)
	}
	r.mu.Unlock()

	r.state.Update(func(st State) State {
		st.Tenant = nil
		st.Err = ""
		return st
	})
	r.logger.Debug("tenant affiliation changed",
		slog.String("tenant_id", id),
		slog.Bool("affiliated", ok))

	if !ok {
		return
	}
	go func() {
		defer r.wg.Done()
		if err := r.Reload(ctx); err != nil {
			r.logger.Warn("tenant reload failed",
				slog.String("tenant_id", id),
				slog.String("error", err.Error()))
		}
	}()
}

// Reload fetches the record for the session's current affiliation. Without
// an affiliation it clears the record and error and returns nil without
// calling the backend. On failure the previous record is kept and State.Err
// is set. A result for an affiliation that is no longer current is
// discarded.
func (r *Resolver) Reload(ctx context.Context) error {
	id, ok := r.sess.Principal().Tenant()
	if !ok {
		r.state.Update(func(st State) State {
			st.Tenant = nil
			st.Err = ""
			return st
		})
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "tenant.Reload",
		trace.WithAttributes(attribute.String("tenant.id", id)))
	defer span.End()

	r.state.Update(func(st State) State {
		st.inflight++
		st.Err = ""
		return st
	})

	rec, err := r.api.GetTenant(ctx, id)
	if err == nil && rec == nil {
		err = domain.ErrNotFound("tenant not found").WithCode(domain.ErrorCodeTenantNotFound)
	}
	if err == nil && rec.ID != id {
		err = domain.ErrServer(fmt.Sprintf("backend returned tenant %q for %q", rec.ID, id))
	}
	if err == nil {
		rec = rec.Clone()
	}
	cancelled := err != nil && ctx.Err() != nil

	// The affiliation is re-read inside the commit so a session change cannot
	// slip in between the check and the write.
	var stale bool
	r.state.Update(func(st State) State {
		st.inflight--
		current, ok := r.sess.Principal().Tenant()
		stale = !ok || current != id
		switch {
		case stale, cancelled:
		case err != nil:
			st.Err = domain.Detail(err)
		default:
			st.Tenant = rec
			st.Err = ""
		}
		return st
	})

	switch {
	case stale:
		span.SetAttributes(attribute.Bool("tenant.stale", true))
		r.logger.Debug("discarding stale tenant result", slog.String("tenant_id", id))
		return nil
	case cancelled:
		span.SetStatus(codes.Error, "cancelled")
		return fmt.Errorf("reload tenant %s: %w", id, errors.Join(err, ctx.Err()))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return fmt.Errorf("reload tenant %s: %w", id, err)
	}
	return nil
}
