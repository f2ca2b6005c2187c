package permission

import (
	"fmt"

	"github.com/ragdesk/console/internal/core/domain"
)

// Capabilities is the full capability set of a role, optionally evaluated
// against the role of a target user. Target-dependent grants are false when
// no target is given.
type Capabilities struct {
	Role                    domain.Role `json:"role"`
	TargetRole              domain.Role `json:"target_role,omitempty"`
	CanViewUsers            bool        `json:"can_view_users"`
	CanManageUsers          bool        `json:"can_manage_users"`
	CanDeleteUser           bool        `json:"can_delete_user"`
	CanAssignRole           bool        `json:"can_assign_role"`
	CanViewTenantSettings   bool        `json:"can_view_tenant_settings"`
	CanManageTenantSettings bool        `json:"can_manage_tenant_settings"`
	CanManageBilling        bool        `json:"can_manage_billing"`
	CanViewStats            bool        `json:"can_view_stats"`
	CanManageTenants        bool        `json:"can_manage_tenants"`
}

// Evaluate derives the capability set for role. Only the first target is
// considered.
func Evaluate(role domain.Role, target ...domain.Role) Capabilities {
	role = domain.ParseRole(string(role))
	c := Capabilities{
		Role:                    role,
		CanViewUsers:            CanViewUsers(role),
		CanManageUsers:          CanManageUsers(role),
		CanViewTenantSettings:   CanViewTenantSettings(role),
		CanManageTenantSettings: CanManageTenantSettings(role),
		CanManageBilling:        CanManageBilling(role),
		CanViewStats:            CanViewStats(role),
		CanManageTenants:        CanManageTenants(role),
	}
	if len(target) > 0 {
		t := domain.ParseRole(string(target[0]))
		c.TargetRole = t
		c.CanDeleteUser = CanDeleteUser(role, t)
		c.CanAssignRole = CanAssignRole(role, t)
	}
	return c
}

// Require checks p against check. It returns an authentication error when p
// is nil and a permission error when check denies p's role.
func Require(p *domain.Principal, check func(domain.Role) bool) error {
	if p == nil {
		return domain.ErrAuthentication("not authenticated")
	}
	role := domain.RoleOf(p)
	if !check(role) {
		if role == domain.RoleNone {
			return domain.ErrPermission("unrecognized role")
		}
		return domain.ErrPermission(fmt.Sprintf("role %s is not allowed to perform this action", role))
	}
	return nil
}
