package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/timetrack/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermCreateEntry    Permission = "create_entry"
	PermEditEntry      Permission = "edit_entry"
	PermSubmitEntry    Permission = "submit_entry"
	PermApproveEntry   Permission = "approve_entry"
	PermRejectEntry    Permission = "reject_entry"
	PermDeleteEntry    Permission = "delete_entry"
	PermListEntries    Permission = "list_entries"
	PermViewStats      Permission = "view_stats"
	PermRecomputeStats Permission = "recompute_stats"
	PermManageUsers    Permission = "manage_users"
	PermManageCompany  Permission = "manage_company"
	PermViewAuditLog   Permission = "view_audit_log"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleSuperadmin: {
		PermCreateEntry,
		PermEditEntry,
		PermSubmitEntry,
		PermApproveEntry,
		PermRejectEntry,
		PermDeleteEntry,
		PermListEntries,
		PermViewStats,
		PermRecomputeStats,
		PermManageUsers,
		PermManageCompany,
		PermViewAuditLog,
	},
	domain.RoleAdmin: {
		PermCreateEntry,
		PermEditEntry,
		PermSubmitEntry,
		PermApproveEntry,
		PermRejectEntry,
		PermDeleteEntry,
		PermListEntries,
		PermViewStats,
		PermRecomputeStats,
		PermManageUsers,
		PermManageCompany,
		PermViewAuditLog,
	},
	domain.RoleManager: {
		PermCreateEntry,
		PermEditEntry,
		PermSubmitEntry,
		PermApproveEntry,
		PermRejectEntry,
		PermDeleteEntry,
		PermListEntries,
		PermViewStats,
	},
	domain.RoleUser: {
		PermCreateEntry,
		PermEditEntry,
		PermSubmitEntry,
		PermDeleteEntry,
		PermListEntries,
		PermViewStats,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s: %w", role, permission, domain.ErrForbidden)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// PermissionStrings converts permissions to their stored string form
func PermissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// ValidateCompanyAccess checks if an actor belongs to a company
func (as *AuthorizationService) ValidateCompanyAccess(actorCompanyID, requestedCompanyID string) error {
	if actorCompanyID != requestedCompanyID {
		as.logger.Warn("company access denied",
			slog.String("actor_company", actorCompanyID),
			slog.String("requested_company", requestedCompanyID),
		)
		return fmt.Errorf("access denied: invalid company: %w", domain.ErrForbidden)
	}
	return nil
}
