// Package permission maps console roles to capability grants. Every function
// is pure and total: a role outside the known set is treated as
// unauthenticated and denied everything.
package permission

import "github.com/ragdesk/console/internal/core/domain"

// rank orders roles by privilege. Unknown roles rank with RoleNone.
func rank(r domain.Role) int {
	switch domain.ParseRole(string(r)) {
	case domain.RolePlatformAdmin:
		return 4
	case domain.RoleTenantAdmin:
		return 3
	case domain.RoleAuditor:
		return 2
	case domain.RoleOperator:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether a holds strictly more privilege than b.
func Outranks(a, b domain.Role) bool {
	return rank(a) > rank(b)
}

func is(r domain.Role, allowed ...domain.Role) bool {
	r = domain.ParseRole(string(r))
	if r == domain.RoleNone {
		return false
	}
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// CanViewUsers reports whether role may list users.
func CanViewUsers(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin, domain.RoleTenantAdmin, domain.RoleAuditor)
}

// CanManageUsers reports whether role may create and edit users.
func CanManageUsers(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin, domain.RoleTenantAdmin)
}

// CanDeleteUser reports whether acting may delete a user holding target.
// The acting role must manage users and outrank the target. The one tie that
// is allowed is platform_admin deleting another platform_admin.
func CanDeleteUser(acting, target domain.Role) bool {
	if !CanManageUsers(acting) {
		return false
	}
	acting = domain.ParseRole(string(acting))
	if acting == domain.RolePlatformAdmin {
		return true
	}
	return Outranks(acting, target)
}

// CanAssignRole reports whether acting may grant target to a user.
func CanAssignRole(acting, target domain.Role) bool {
	if !CanManageUsers(acting) || !target.Valid() {
		return false
	}
	if domain.ParseRole(string(acting)) == domain.RolePlatformAdmin {
		return true
	}
	return Outranks(acting, target)
}

// CanViewTenantSettings reports whether role may read the tenant settings.
func CanViewTenantSettings(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin, domain.RoleTenantAdmin, domain.RoleAuditor)
}

// CanManageTenantSettings reports whether role may change the tenant settings.
func CanManageTenantSettings(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin, domain.RoleTenantAdmin)
}

// CanManageBilling reports whether role may change the subscription plan.
func CanManageBilling(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin, domain.RoleTenantAdmin)
}

// CanViewStats reports whether role may read usage statistics.
func CanViewStats(role domain.Role) bool {
	return is(role, domain.Roles...)
}

// CanManageTenants reports whether role may create and edit tenants other
// than its own.
func CanManageTenants(role domain.Role) bool {
	return is(role, domain.RolePlatformAdmin)
}
