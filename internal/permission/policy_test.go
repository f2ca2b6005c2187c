package permission

import (
	"errors"
	"testing"

	"github.com/ragdesk/console/internal/core/domain"
)

var allRoles = []domain.Role{
	domain.RolePlatformAdmin,
	domain.RoleTenantAdmin,
	domain.RoleOperator,
	domain.RoleAuditor,
	domain.RoleNone,
	"superuser",
	"PLATFORM_ADMIN ",
}

func TestCanViewUsers(t *testing.T) {
	tests := []struct {
		role domain.Role
		want bool
	}{
		{domain.RolePlatformAdmin, true},
		{domain.RoleTenantAdmin, true},
		{domain.RoleAuditor, true},
		{domain.RoleOperator, false},
		{domain.RoleNone, false},
		{"superuser", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanViewUsers(tt.role); got != tt.want {
				t.Errorf("CanViewUsers(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestCanManageUsers(t *testing.T) {
	tests := []struct {
		role domain.Role
		want bool
	}{
		{domain.RolePlatformAdmin, true},
		{domain.RoleTenantAdmin, true},
		{domain.RoleAuditor, false},
		{domain.RoleOperator, false},
		{domain.RoleNone, false},
		{"owner", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanManageUsers(tt.role); got != tt.want {
				t.Errorf("CanManageUsers(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestManageImpliesView(t *testing.T) {
	for _, role := range allRoles {
		if CanManageUsers(role) && !CanViewUsers(role) {
			t.Errorf("role %q can manage users but not view them", role)
		}
		if CanManageTenantSettings(role) && !CanViewTenantSettings(role) {
			t.Errorf("role %q can manage tenant settings but not view them", role)
		}
	}
}

func TestCanDeleteUser(t *testing.T) {
	tests := []struct {
		name           string
		acting, target domain.Role
		want           bool
	}{
		{"tenant admin cannot delete platform admin", domain.RoleTenantAdmin, domain.RolePlatformAdmin, false},
		{"platform admin deletes operator", domain.RolePlatformAdmin, domain.RoleOperator, true},
		{"platform admin deletes tenant admin", domain.RolePlatformAdmin, domain.RoleTenantAdmin, true},
		{"tenant admin deletes operator", domain.RoleTenantAdmin, domain.RoleOperator, true},
		{"tenant admin deletes auditor", domain.RoleTenantAdmin, domain.RoleAuditor, true},
		{"auditor cannot delete operator", domain.RoleAuditor, domain.RoleOperator, false},
		{"operator cannot delete anyone", domain.RoleOperator, domain.RoleNone, false},
		{"unauthenticated cannot delete", domain.RoleNone, domain.RoleOperator, false},
		{"unknown acting role", "root", domain.RoleOperator, false},
		{"unknown target ranks lowest", domain.RoleTenantAdmin, "intern", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDeleteUser(tt.acting, tt.target); got != tt.want {
				t.Errorf("CanDeleteUser(%q, %q) = %v, want %v", tt.acting, tt.target, got, tt.want)
			}
		})
	}
}

func TestCanDeleteUser_SameRole(t *testing.T) {
	tests := []struct {
		role domain.Role
		want bool
	}{
		{domain.RolePlatformAdmin, true},
		{domain.RoleTenantAdmin, false},
		{domain.RoleAuditor, false},
		{domain.RoleOperator, false},
		{domain.RoleNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanDeleteUser(tt.role, tt.role); got != tt.want {
				t.Errorf("CanDeleteUser(%q, %q) = %v, want %v", tt.role, tt.role, got, tt.want)
			}
		})
	}
}

func TestCanDeleteUser_RequiresManage(t *testing.T) {
	for _, acting := range allRoles {
		for _, target := range allRoles {
			if CanDeleteUser(acting, target) && !CanManageUsers(acting) {
				t.Errorf("CanDeleteUser(%q, %q) granted without manage rights", acting, target)
			}
		}
	}
}

func TestCanAssignRole(t *testing.T) {
	tests := []struct {
		acting, target domain.Role
		want           bool
	}{
		{domain.RolePlatformAdmin, domain.RolePlatformAdmin, true},
		{domain.RolePlatformAdmin, domain.RoleTenantAdmin, true},
		{domain.RoleTenantAdmin, domain.RoleTenantAdmin, false},
		{domain.RoleTenantAdmin, domain.RoleAuditor, true},
		{domain.RoleTenantAdmin, domain.RoleOperator, true},
		{domain.RoleAuditor, domain.RoleOperator, false},
		{domain.RolePlatformAdmin, domain.RoleNone, false},
		{domain.RolePlatformAdmin, "wizard", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.acting)+"->"+string(tt.target), func(t *testing.T) {
			if got := CanAssignRole(tt.acting, tt.target); got != tt.want {
				t.Errorf("CanAssignRole(%q, %q) = %v, want %v", tt.acting, tt.target, got, tt.want)
			}
		})
	}
}

func TestTenantAndBillingGrants(t *testing.T) {
	tests := []struct {
		role           domain.Role
		viewSettings   bool
		manageSettings bool
		billing        bool
		stats          bool
		tenants        bool
	}{
		{domain.RolePlatformAdmin, true, true, true, true, true},
		{domain.RoleTenantAdmin, true, true, true, true, false},
		{domain.RoleAuditor, true, false, false, true, false},
		{domain.RoleOperator, false, false, false, true, false},
		{domain.RoleNone, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanViewTenantSettings(tt.role); got != tt.viewSettings {
				t.Errorf("CanViewTenantSettings = %v, want %v", got, tt.viewSettings)
			}
			if got := CanManageTenantSettings(tt.role); got != tt.manageSettings {
				t.Errorf("CanManageTenantSettings = %v, want %v", got, tt.manageSettings)
			}
			if got := CanManageBilling(tt.role); got != tt.billing {
				t.Errorf("CanManageBilling = %v, want %v", got, tt.billing)
			}
			if got := CanViewStats(tt.role); got != tt.stats {
				t.Errorf("CanViewStats = %v, want %v", got, tt.stats)
			}
			if got := CanManageTenants(tt.role); got != tt.tenants {
				t.Errorf("CanManageTenants = %v, want %v", got, tt.tenants)
			}
		})
	}
}

func TestOutranks(t *testing.T) {
	order := []domain.Role{domain.RoleNone, domain.RoleOperator, domain.RoleAuditor, domain.RoleTenantAdmin, domain.RolePlatformAdmin}
	for i := range order {
		for j := range order {
			if got, want := Outranks(order[i], order[j]), i > j; got != want {
				t.Errorf("Outranks(%q, %q) = %v, want %v", order[i], order[j], got, want)
			}
		}
	}
}

func TestEvaluate(t *testing.T) {
	c := Evaluate(domain.RoleTenantAdmin)
	if !c.CanViewUsers || !c.CanManageUsers || !c.CanManageTenantSettings {
		t.Errorf("tenant admin capabilities = %+v", c)
	}
	if c.CanManageTenants {
		t.Error("tenant admin should not manage tenants")
	}
	if c.CanDeleteUser || c.CanAssignRole {
		t.Error("target grants must be false without a target")
	}

	c = Evaluate(domain.RoleTenantAdmin, domain.RolePlatformAdmin)
	if c.TargetRole != domain.RolePlatformAdmin {
		t.Errorf("TargetRole = %q", c.TargetRole)
	}
	if c.CanDeleteUser {
		t.Error("tenant admin must not delete platform admin")
	}

	c = Evaluate("bogus", domain.RoleOperator)
	if c != (Capabilities{TargetRole: domain.RoleOperator}) {
		t.Errorf("unknown role should be denied everything, got %+v", c)
	}
}

func TestRequire(t *testing.T) {
	tenantID := "t1"
	admin := &domain.Principal{ID: "u1", Role: domain.RoleTenantAdmin, TenantID: &tenantID}
	auditor := &domain.Principal{ID: "u2", Role: domain.RoleAuditor, TenantID: &tenantID}

	if err := Require(admin, CanManageTenantSettings); err != nil {
		t.Errorf("Require(admin) error = %v", err)
	}

	err := Require(auditor, CanManageTenantSettings)
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Type != domain.ErrorTypePermission {
		t.Fatalf("Require(auditor) error = %v, want permission error", err)
	}
	if apiErr.HTTPStatusCode() != 403 {
		t.Errorf("status = %d, want 403", apiErr.HTTPStatusCode())
	}

	err = Require(nil, CanViewStats)
	var authErr *domain.APIError
	if !errors.As(err, &authErr) || authErr.Type != domain.ErrorTypeAuthentication {
		t.Fatalf("Require(nil) error = %v, want authentication error", err)
	}
	if authErr.HTTPStatusCode() != 401 {
		t.Errorf("status = %d, want 401", authErr.HTTPStatusCode())
	}
}
