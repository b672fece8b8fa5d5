package domain

import (
	"fmt"
	"slices"
)

// Permission is a static capability claim carried in access tokens.
type Permission string

const (
	PermissionProjectCreate       Permission = "project:create"
	PermissionProjectRead         Permission = "project:read"
	PermissionProjectUpdate       Permission = "project:update"
	PermissionProjectDelete       Permission = "project:delete"
	PermissionProjectManageBudget Permission = "project:manage_budget"

	PermissionTaskCreate       Permission = "task:create"
	PermissionTaskRead         Permission = "task:read"
	PermissionTaskUpdate       Permission = "task:update"
	PermissionTaskDelete       Permission = "task:delete"
	PermissionTaskAssignUser   Permission = "task:assign_user"
	PermissionTaskUpdateStatus Permission = "task:update_status"
)

// Role is a named bundle of permissions.
type Role string

const (
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
)

var rolePermissions = map[Role][]Permission{
	RoleProjectManager: {
		PermissionProjectCreate,
		PermissionProjectRead,
		PermissionProjectUpdate,
		PermissionProjectDelete,
		PermissionProjectManageBudget,
		PermissionTaskCreate,
		PermissionTaskRead,
		PermissionTaskUpdate,
		PermissionTaskDelete,
		PermissionTaskAssignUser,
		PermissionTaskUpdateStatus,
	},
	RoleMember: {
		PermissionProjectRead,
		PermissionTaskRead,
		PermissionTaskUpdate,
		PermissionTaskUpdateStatus,
	},
}

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := rolePermissions[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Permissions returns the permissions granted to the role.
func (r Role) Permissions() []Permission {
	return slices.Clone(rolePermissions[r])
}

// HasPermission reports whether perms contains p.
func HasPermission(perms []Permission, p Permission) bool {
	return slices.Contains(perms, p)
}
