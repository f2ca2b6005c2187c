package server

import (
	"net/http"
	"strings"

	"github.com/ragdesk/console/internal/binding"
	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/session"
	"github.com/ragdesk/console/internal/tenant"
)

type sessionView struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	Principal     *domain.Principal `json:"user"`
}

func newSessionView(st session.State) sessionView {
	return sessionView{
		Authenticated: st.Authenticated(),
		Loading:       st.Loading(),
		Principal:     st.Principal,
	}
}

type tenantView struct {
	Tenant  *domain.TenantRecord `json:"tenant"`
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
}

func newTenantView(st tenant.State) tenantView {
	return tenantView{
		Tenant:  st.Tenant,
		Loading: st.Loading(),
		Error:   st.Err,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(binding.UseSession(r.Context())))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, err)
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		writeError(w, r, domain.ErrInvalidRequest("email and password are required"))
		return
	}

	store := binding.SessionStore(r.Context())
	p, err := store.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	AddLogField(r.Context(), "principal_id", p.ID)
	writeJSON(w, http.StatusOK, newSessionView(store.State()))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	binding.SessionStore(r.Context()).Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	store := binding.SessionStore(r.Context())
	if err := store.Refresh(r.Context()); err != nil {
		AddError(r.Context(), err)
		if !store.Authenticated() {
			writeError(w, r, domain.ErrAuthentication(domain.Detail(err)))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(store.State()))
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTenantView(binding.UseTenant(r.Context())))
}

// handleReloadTenant always answers with the resolver state; a failed fetch
// shows up in its error field.
func (s *Server) handleReloadTenant(w http.ResponseWriter, r *http.Request) {
	resolver := binding.TenantResolver(r.Context())
	if err := resolver.Reload(r.Context()); err != nil {
		AddError(r.Context(), err)
	}
	writeJSON(w, http.StatusOK, newTenantView(resolver.State()))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.settings.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	var patch domain.TenantPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.settings.UpdateTenant(r.Context(), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var target []domain.Role
	if raw := r.URL.Query().Get("target_role"); raw != "" {
		target = append(target, domain.Role(raw))
	}
	writeJSON(w, http.StatusOK, binding.UsePermissions(r.Context(), target...))
}
