package security

import (
	"errors"
	"testing"

	"github.com/yourorg/timetrack/internal/domain"
)

func TestHasPermissionMatrix(t *testing.T) {
	svc := NewAuthorizationService(nil)

	cases := []struct {
		role domain.Role
		perm Permission
		want bool
	}{
		{domain.RoleUser, PermCreateEntry, true},
		{domain.RoleUser, PermApproveEntry, false},
		{domain.RoleUser, PermManageCompany, false},
		{domain.RoleManager, PermApproveEntry, true},
		{domain.RoleManager, PermRecomputeStats, false},
		{domain.RoleManager, PermManageCompany, false},
		{domain.RoleAdmin, PermRecomputeStats, true},
		{domain.RoleAdmin, PermManageCompany, true},
		{domain.RoleSuperadmin, PermViewAuditLog, true},
		{domain.Role("intern"), PermCreateEntry, false},
	}
	for _, tc := range cases {
		if got := svc.HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestValidatePermissionWrapsForbidden(t *testing.T) {
	svc := NewAuthorizationService(nil)

	if err := svc.ValidatePermission(domain.RoleManager, PermApproveEntry); err != nil {
		t.Fatalf("expected manager to approve entries, got %v", err)
	}

	err := svc.ValidatePermission(domain.RoleUser, PermApproveEntry)
	if err == nil {
		t.Fatal("expected user approval to be denied")
	}
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetRolePermissionsUnknownRole(t *testing.T) {
	svc := NewAuthorizationService(nil)

	if perms := svc.GetRolePermissions(domain.Role("intern")); len(perms) != 0 {
		t.Fatalf("expected no permissions for unknown role, got %v", perms)
	}
}

func TestPermissionStrings(t *testing.T) {
	got := PermissionStrings([]Permission{PermCreateEntry, PermViewStats})
	if len(got) != 2 || got[0] != "create_entry" || got[1] != "view_stats" {
		t.Fatalf("unexpected strings: %v", got)
	}
}

func TestValidateCompanyAccess(t *testing.T) {
	svc := NewAuthorizationService(nil)

	if err := svc.ValidateCompanyAccess("acme", "acme"); err != nil {
		t.Fatalf("expected same-company access, got %v", err)
	}
	err := svc.ValidateCompanyAccess("acme", "globex")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cross-company access, got %v", err)
	}
}
