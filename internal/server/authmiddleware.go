package server

import (
	"net/http"

	"github.com/ragdesk/console/internal/binding"
	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/permission"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/tenant"
)

// ScopeMiddleware installs the application's session store and tenant
// resolver into every request context so handlers read them through the
// binding accessors.
func ScopeMiddleware(store *session.Store, resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !binding.Installed(ctx) {
				ctx = binding.Install(ctx, store, resolver)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability rejects requests whose session principal fails check:
// 401 when nobody is logged in, 403 when the role is not allowed.
func RequireCapability(check func(domain.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := binding.UseSession(r.Context()).Principal
			if p != nil {
				AddLogField(r.Context(), "principal_id", p.ID)
				AddLogField(r.Context(), "role", string(p.Role))
			}
			if err := permission.Require(p, check); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
