package tenant

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ragdesk/console/internal/core/domain"
)

func newSettingsFixture(t *testing.T, role domain.Role) (*SettingsService, *Resolver, *fakeTenantAPI) {
	t.Helper()
	api := newFakeTenantAPI(record("acme", "Acme"))
	sess := newFakeSession(principalIn("acme", role))
	r := newTestResolver(t, api, sess)
	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return NewSettingsService(api, r), r, api
}

func TestSettingsService_ReadYourWrites(t *testing.T) {
	svc, r, _ := newSettingsFixture(t, domain.RoleTenantAdmin)

	observed := make(chan string, 8)
	unsubscribe := r.Subscribe(func(st State) {
		if st.Tenant != nil {
			observed <- st.Tenant.Settings.DefaultChatModel
		}
	})
	defer unsubscribe()

	rec, err := svc.SetChatModel(context.Background(), "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("SetChatModel() error = %v", err)
	}
	if rec.Settings.DefaultChatModel != "claude-3-5-sonnet" {
		t.Errorf("returned model = %q", rec.Settings.DefaultChatModel)
	}
	if got := r.Tenant().Settings.DefaultChatModel; got != "claude-3-5-sonnet" {
		t.Errorf("resolver model = %q, want the written value", got)
	}

	close(observed)
	var last string
	for m := range observed {
		last = m
	}
	if last != "claude-3-5-sonnet" {
		t.Errorf("subscriber last saw %q", last)
	}
}

func TestSettingsService_Setters(t *testing.T) {
	svc, r, api := newSettingsFixture(t, domain.RolePlatformAdmin)
	ctx := context.Background()

	if _, err := svc.SetEmbeddingModel(ctx, "text-embedding-3-large"); err != nil {
		t.Fatalf("SetEmbeddingModel() error = %v", err)
	}
	if _, err := svc.SetWebhookNotifications(ctx, true); err != nil {
		t.Fatalf("SetWebhookNotifications() error = %v", err)
	}
	if _, err := svc.SetAllowedOrigins(ctx, []string{"https://Shop.Example.com/", "http://localhost:3000", "https://shop.example.com"}); err != nil {
		t.Fatalf("SetAllowedOrigins() error = %v", err)
	}

	s := r.Tenant().Settings
	if s.DefaultEmbeddingModel != "text-embedding-3-large" {
		t.Errorf("DefaultEmbeddingModel = %q", s.DefaultEmbeddingModel)
	}
	if !s.WebhookNotifications {
		t.Error("WebhookNotifications = false")
	}
	want := []string{"https://shop.example.com", "http://localhost:3000"}
	if !reflect.DeepEqual(s.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", s.AllowedOrigins, want)
	}
	if len(api.settingsPatches) != 3 {
		t.Errorf("backend received %d patches, want 3", len(api.settingsPatches))
	}
}

func TestSettingsService_ClearAllowedOrigins(t *testing.T) {
	svc, r, _ := newSettingsFixture(t, domain.RoleTenantAdmin)

	if _, err := svc.SetAllowedOrigins(context.Background(), nil); err != nil {
		t.Fatalf("SetAllowedOrigins(nil) error = %v", err)
	}
	if n := len(r.Tenant().Settings.AllowedOrigins); n != 0 {
		t.Errorf("AllowedOrigins has %d entries, want 0", n)
	}
}

func TestSettingsService_Validation(t *testing.T) {
	svc, _, api := newSettingsFixture(t, domain.RoleTenantAdmin)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty patch", func() error {
			_, err := svc.UpdateSettings(ctx, domain.SettingsPatch{})
			return err
		}},
		{"blank chat model", func() error {
			_, err := svc.SetChatModel(ctx, "  ")
			return err
		}},
		{"blank embedding model", func() error {
			_, err := svc.SetEmbeddingModel(ctx, "")
			return err
		}},
		{"bad origin", func() error {
			_, err := svc.SetAllowedOrigins(ctx, []string{"ftp://files.example.com"})
			return err
		}},
		{"empty tenant patch", func() error {
			_, err := svc.UpdateTenant(ctx, domain.TenantPatch{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			apiErr, ok := domain.AsAPIError(err)
			if !ok || apiErr.Type != domain.ErrorTypeInvalidRequest {
				t.Errorf("error = %v, want invalid_request", err)
			}
		})
	}
	if len(api.settingsPatches)+len(api.tenantPatches) != 0 {
		t.Error("invalid input reached the backend")
	}
}

func TestSettingsService_Permissions(t *testing.T) {
	plan := "enterprise"
	status := "suspended"
	name := "Acme Corp"

	tests := []struct {
		name    string
		role    domain.Role
		patch   domain.TenantPatch
		wantErr bool
	}{
		{"tenant admin renames", domain.RoleTenantAdmin, domain.TenantPatch{Name: &name}, false},
		{"tenant admin changes plan", domain.RoleTenantAdmin, domain.TenantPatch{Plan: &plan}, false},
		{"tenant admin cannot suspend", domain.RoleTenantAdmin, domain.TenantPatch{Status: &status}, true},
		{"platform admin suspends", domain.RolePlatformAdmin, domain.TenantPatch{Status: &status}, false},
		{"auditor cannot rename", domain.RoleAuditor, domain.TenantPatch{Name: &name}, true},
		{"operator cannot change plan", domain.RoleOperator, domain.TenantPatch{Plan: &plan}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r, api := newSettingsFixture(t, tt.role)
			_, err := svc.UpdateTenant(context.Background(), tt.patch)
			if tt.wantErr {
				apiErr, ok := domain.AsAPIError(err)
				if !ok || apiErr.Type != domain.ErrorTypePermission {
					t.Fatalf("UpdateTenant() error = %v, want permission error", err)
				}
				if len(api.tenantPatches) != 0 {
					t.Error("denied update reached the backend")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateTenant() error = %v", err)
			}
			if tt.patch.Name != nil && r.Tenant().Name != *tt.patch.Name {
				t.Errorf("Name = %q after reload", r.Tenant().Name)
			}
		})
	}
}

func TestSettingsService_AuditorCannotWriteSettings(t *testing.T) {
	svc, _, api := newSettingsFixture(t, domain.RoleAuditor)

	_, err := svc.SetWebhookNotifications(context.Background(), true)
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.HTTPStatusCode() != 403 {
		t.Fatalf("error = %v, want 403", err)
	}
	if len(api.settingsPatches) != 0 {
		t.Error("denied write reached the backend")
	}
}

func TestSettingsService_WriteFailureSkipsReload(t *testing.T) {
	svc, r, api := newSettingsFixture(t, domain.RoleTenantAdmin)
	api.writeErr = domain.ErrServer("database is locked")
	calls := api.callCount("acme")

	_, err := svc.SetChatModel(context.Background(), "gpt-4o")
	if !errors.Is(err, api.writeErr) {
		t.Fatalf("error = %v, want backend write error", err)
	}
	if api.callCount("acme") != calls {
		t.Error("failed write triggered a reload")
	}
	if r.Tenant().Settings.DefaultChatModel != "gpt-4o-mini" {
		t.Error("failed write changed the resolver record")
	}
}

func TestSettingsService_NoTenant(t *testing.T) {
	api := newFakeTenantAPI()
	sess := newFakeSession(principalIn("", domain.RolePlatformAdmin))
	r := newTestResolver(t, api, sess)
	svc := NewSettingsService(api, r)

	_, err := svc.SetChatModel(context.Background(), "gpt-4o")
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Code != domain.ErrorCodeTenantNotFound {
		t.Fatalf("error = %v, want tenant_not_found", err)
	}
}

func TestSettingsService_Unauthenticated(t *testing.T) {
	api := newFakeTenantAPI()
	r := newTestResolver(t, api, newFakeSession(nil))
	svc := NewSettingsService(api, r)

	_, err := svc.SetWebhookNotifications(context.Background(), false)
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypeAuthentication {
		t.Fatalf("error = %v, want authentication error", err)
	}
}

func TestNormalizeOrigins(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{"empty", []string{}, []string{}, false},
		{"trailing slash and case", []string{"HTTPS://App.Example.com/"}, []string{"https://app.example.com"}, false},
		{"port kept", []string{"http://localhost:8080"}, []string{"http://localhost:8080"}, false},
		{"duplicates dropped", []string{"https://a.test", "https://a.test/"}, []string{"https://a.test"}, false},
		{"path rejected", []string{"https://a.test/widget"}, nil, true},
		{"query rejected", []string{"https://a.test?x=1"}, nil, true},
		{"no scheme", []string{"a.test"}, nil, true},
		{"wildcard", []string{"*"}, nil, true},
		{"userinfo", []string{"https://user@a.test"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOrigins(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeOrigins() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeOrigins() = %v, want %v", got, tt.want)
			}
		})
	}
}
