package domain

import (
	"strings"
	"time"
)

// Role is the closed set of roles a console principal can hold.
type Role string

const (
	// RoleNone is the role of an absent or unrecognized principal.
	RoleNone          Role = ""
	RolePlatformAdmin Role = "platform_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleOperator      Role = "operator"
	RoleAuditor       Role = "auditor"
)

// Roles lists every assignable role, most privileged first.
var Roles = []Role{RolePlatformAdmin, RoleTenantAdmin, RoleAuditor, RoleOperator}

// ParseRole maps a wire value to a Role. Matching is exact: any other
// spelling, including case or whitespace variants, maps to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RolePlatformAdmin:
		return RolePlatformAdmin
	case RoleTenantAdmin:
		return RoleTenantAdmin
	case RoleOperator:
		return RoleOperator
	case RoleAuditor:
		return RoleAuditor
	default:
		return RoleNone
	}
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r != RoleNone && ParseRole(string(r)) == r
}

// Principal is the authenticated actor.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	// TenantID is nil for platform-level principals.
	TenantID *string `json:"tenant_id,omitempty"`
	IsActive bool    `json:"is_active"`
}

// Tenant returns the principal's tenant affiliation.
func (p *Principal) Tenant() (string, bool) {
	if p == nil || p.TenantID == nil {
		return "", false
	}
	return *p.TenantID, true
}

// RoleOf returns the principal's role, or RoleNone for a nil principal.
func RoleOf(p *Principal) Role {
	if p == nil {
		return RoleNone
	}
	return ParseRole(string(p.Role))
}

// Normalize canonicalizes wire values in place: roles are parsed against the
// closed enumeration and an empty tenant id becomes an absent affiliation.
func (p *Principal) Normalize() {
	p.Role = ParseRole(string(p.Role))
	if p.TenantID != nil && strings.TrimSpace(*p.TenantID) == "" {
		p.TenantID = nil
	}
}

// Validate checks the principal invariants.
func (p *Principal) Validate() error {
	if p == nil {
		return ErrInvalidRequest("principal is missing").WithCode(ErrorCodeInvalidPrincipal)
	}
	if p.ID == "" {
		return ErrInvalidRequest("principal has no id").WithCode(ErrorCodeInvalidPrincipal)
	}
	if !p.Role.Valid() {
		return ErrInvalidRequest("principal has unknown role").WithCode(ErrorCodeInvalidPrincipal)
	}
	return nil
}

// Clone returns a deep copy of p.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.TenantID != nil {
		id := *p.TenantID
		cp.TenantID = &id
	}
	return &cp
}

// SameTenant reports whether a and b carry the same tenant affiliation,
// treating two absent affiliations as equal.
func SameTenant(a, b *Principal) bool {
	ida, oka := a.Tenant()
	idb, okb := b.Tenant()
	return oka == okb && ida == idb
}

// Credentials are exchanged for a session at login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what a successful credential exchange yields.
type LoginResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Principal    *Principal `json:"user"`
}

// Token keys in durable client-side storage.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TenantRecord is the active tenant's configuration.
type TenantRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Domain    string         `json:"domain"`
	Plan      string         `json:"plan"`
	Status    string         `json:"status"`
	Settings  TenantSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// TenantSettings is the nested configuration bundle of a tenant.
type TenantSettings struct {
	MaxUsers              int      `json:"max_users"`
	MaxDocuments          int      `json:"max_documents"`
	MaxStorageMB          int      `json:"max_storage_mb"`
	DefaultChatModel      string   `json:"default_chat_model"`
	DefaultEmbeddingModel string   `json:"default_embedding_model"`
	WebhookNotifications  bool     `json:"webhook_notifications"`
	AllowedOrigins        []string `json:"allowed_origins"`
}

// Clone returns a deep copy of t.
func (t *TenantRecord) Clone() *TenantRecord {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Settings.AllowedOrigins = append([]string(nil), t.Settings.AllowedOrigins...)
	return &cp
}

// SettingsPatch is a partial update of TenantSettings. Nil fields are left
// unchanged by the backend.
type SettingsPatch struct {
	DefaultChatModel      *string   `json:"default_chat_model,omitempty"`
	DefaultEmbeddingModel *string   `json:"default_embedding_model,omitempty"`
	WebhookNotifications  *bool     `json:"webhook_notifications,omitempty"`
	AllowedOrigins        *[]string `json:"allowed_origins,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.DefaultChatModel == nil && p.DefaultEmbeddingModel == nil &&
		p.WebhookNotifications == nil && p.AllowedOrigins == nil
}

// TenantPatch is a partial update of the tenant's top-level attributes.
type TenantPatch struct {
	Name   *string `json:"name,omitempty"`
	Domain *string `json:"domain,omitempty"`
	Plan   *string `json:"plan,omitempty"`
	Status *string `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TenantPatch) Empty() bool {
	return p.Name == nil && p.Domain == nil && p.Plan == nil && p.Status == nil
}
