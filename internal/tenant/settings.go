package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/permission"
)

// SettingsService writes tenant mutations through the backend and reloads the
// resolver before returning, so every subscriber observes the write.
type SettingsService struct {
	api      ports.TenantAPI
	resolver *Resolver
	logger   *slog.Logger
}

// NewSettingsService creates a SettingsService bound to resolver.
func NewSettingsService(api ports.TenantAPI, resolver *Resolver) *SettingsService {
	return &SettingsService{
		api:      api,
		resolver: resolver,
		logger:   resolver.logger,
	}
}

func (s *SettingsService) actingTenant(check func(domain.Role) bool) (string, error) {
	p := s.resolver.sess.Principal()
	if err := permission.Require(p, check); err != nil {
		return "", err
	}
	id, ok := p.Tenant()
	if !ok {
		return "", domain.ErrInvalidRequest("principal has no tenant").WithCode(domain.ErrorCodeTenantNotFound)
	}
	return id, nil
}

// UpdateSettings applies patch to the current tenant's settings and returns
// the reloaded record.
func (s *SettingsService) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (*domain.TenantRecord, error) {
	if patch.Empty() {
		return nil, domain.ErrInvalidRequest("settings patch is empty")
	}
	if patch.AllowedOrigins != nil {
		origins, err := NormalizeOrigins(*patch.AllowedOrigins)
		if err != nil {
			return nil, err
		}
		patch.AllowedOrigins = &origins
	}

	id, err := s.actingTenant(permission.CanManageTenantSettings)
	if err != nil {
		return nil, err
	}

	if _, err := s.api.UpdateTenantSettings(ctx, id, patch); err != nil {
		return nil, err
	}
	s.logger.Info("tenant settings updated", slog.String("tenant_id", id))
	return s.reload(ctx)
}

// UpdateTenant applies patch to the current tenant's top-level attributes.
// Changing the plan additionally requires billing rights and changing the
// status requires tenant management rights.
func (s *SettingsService) UpdateTenant(ctx context.Context, patch domain.TenantPatch) (*domain.TenantRecord, error) {
	if patch.Empty() {
		return nil, domain.ErrInvalidRequest("tenant patch is empty")
	}

	check := permission.CanManageTenantSettings
	switch {
	case patch.Status != nil:
		check = permission.CanManageTenants
	case patch.Plan != nil:
		check = permission.CanManageBilling
	}
	id, err := s.actingTenant(check)
	if err != nil {
		return nil, err
	}

	if _, err := s.api.UpdateTenant(ctx, id, patch); err != nil {
		return nil, err
	}
	s.logger.Info("tenant updated", slog.String("tenant_id", id))
	return s.reload(ctx)
}

// SetChatModel sets the tenant's default chat model.
func (s *SettingsService) SetChatModel(ctx context.Context, model string) (*domain.TenantRecord, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, domain.ErrInvalidRequest("chat model is required")
	}
	return s.UpdateSettings(ctx, domain.SettingsPatch{DefaultChatModel: &model})
}

// SetEmbeddingModel sets the tenant's default embedding model.
func (s *SettingsService) SetEmbeddingModel(ctx context.Context, model string) (*domain.TenantRecord, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, domain.ErrInvalidRequest("embedding model is required")
	}
	return s.UpdateSettings(ctx, domain.SettingsPatch{DefaultEmbeddingModel: &model})
}

// SetWebhookNotifications toggles webhook notifications.
func (s *SettingsService) SetWebhookNotifications(ctx context.Context, enabled bool) (*domain.TenantRecord, error) {
	return s.UpdateSettings(ctx, domain.SettingsPatch{WebhookNotifications: &enabled})
}

// SetAllowedOrigins replaces the origins the chat widget may be embedded on.
func (s *SettingsService) SetAllowedOrigins(ctx context.Context, origins []string) (*domain.TenantRecord, error) {
	if origins == nil {
		origins = []string{}
	}
	return s.UpdateSettings(ctx, domain.SettingsPatch{AllowedOrigins: &origins})
}

func (s *SettingsService) reload(ctx context.Context) (*domain.TenantRecord, error) {
	if err := s.resolver.Reload(ctx); err != nil {
		return nil, fmt.Errorf("update saved but reload failed: %w", err)
	}
	return s.resolver.Tenant(), nil
}

// NormalizeOrigins validates origins as absolute http(s) origins, strips
// trailing slashes and drops duplicates while keeping order.
func NormalizeOrigins(origins []string) ([]string, error) {
	out := make([]string, 0, len(origins))
	seen := make(map[string]bool, len(origins))
	for _, raw := range origins {
		origin, err := normalizeOrigin(raw)
		if err != nil {
			return nil, err
		}
		if seen[origin] {
			continue
		}
		seen[origin] = true
		out = append(out, origin)
	}
	return out, nil
}

func normalizeOrigin(raw string) (string, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	u, err := url.Parse(s)
	if err != nil {
		return "", domain.ErrInvalidRequest(fmt.Sprintf("invalid origin %q", raw))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.ErrInvalidRequest(fmt.Sprintf("origin %q must use http or https", raw))
	}
	if u.Host == "" || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", domain.ErrInvalidRequest(fmt.Sprintf("origin %q must be scheme://host[:port]", raw))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
