package rbac

import (
	"errors"
	"testing"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "owner delete scope", role: RoleOwner, action: ActionDeleteScope, allow: true},
		{name: "admin manage members", role: RoleAdmin, action: ActionManageMembers, allow: true},
		{name: "admin delete scope", role: RoleAdmin, action: ActionDeleteScope, allow: false},
		{name: "member read", role: RoleMember, action: ActionRead, allow: true},
		{name: "member write", role: RoleMember, action: ActionWrite, allow: false},
		{name: "editor write", role: RoleEditor, action: ActionWrite, allow: true},
		{name: "editor manage members", role: RoleEditor, action: ActionManageMembers, allow: false},
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "unknown role", role: Role("auditor"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeWorkspaceRole("editor"); got != RoleMember {
		t.Fatalf("NormalizeWorkspaceRole(editor) = %q, want member", got)
	}
	if got := NormalizeWorkspaceRole("admin"); got != RoleAdmin {
		t.Fatalf("NormalizeWorkspaceRole(admin) = %q", got)
	}
	if got := NormalizeBoardRole("owner"); got != RoleViewer {
		t.Fatalf("NormalizeBoardRole(owner) = %q, want viewer", got)
	}
	if got := NormalizeBoardRole("editor"); got != RoleEditor {
		t.Fatalf("NormalizeBoardRole(editor) = %q", got)
	}
}

func TestCheckMutateBottomTierAlwaysDenied(t *testing.T) {
	targets := []Role{RoleOwner, RoleAdmin, RoleMember, RoleEditor, RoleViewer}
	for _, actor := range []Role{RoleMember, RoleViewer} {
		for _, target := range targets {
			if err := CheckMutate(actor, target, false); !errors.Is(err, ErrNoAuthority) {
				t.Fatalf("CheckMutate(%q, %q) = %v, want ErrNoAuthority", actor, target, err)
			}
		}
	}
}

func TestCheckMutateOwnerTargetAlwaysDenied(t *testing.T) {
	for _, actor := range []Role{RoleOwner, RoleAdmin} {
		if err := CheckMutate(actor, RoleOwner, false); !errors.Is(err, ErrTargetIsOwner) {
			t.Fatalf("CheckMutate(%q, owner) = %v, want ErrTargetIsOwner", actor, err)
		}
	}
	// Even a sole owner targeting themselves hits the owner guard.
	if err := CheckMutate(RoleOwner, RoleOwner, true); !errors.Is(err, ErrTargetIsOwner) {
		t.Fatalf("owner self-target = %v, want ErrTargetIsOwner", err)
	}
}

func TestCheckMutateSelfTargetDenied(t *testing.T) {
	if err := CheckMutate(RoleAdmin, RoleMember, true); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("admin self-target = %v, want ErrSelfTarget", err)
	}
}

func TestCheckMutatePeerProtection(t *testing.T) {
	if err := CheckMutate(RoleAdmin, RoleAdmin, false); !errors.Is(err, ErrPeerProtection) {
		t.Fatalf("admin vs admin = %v, want ErrPeerProtection", err)
	}
	if err := CheckMutate(RoleEditor, RoleEditor, false); !errors.Is(err, ErrPeerProtection) {
		t.Fatalf("editor vs editor = %v, want ErrPeerProtection", err)
	}
}

func TestCheckMutateAllowed(t *testing.T) {
	cases := []struct {
		actor  Role
		target Role
	}{
		{RoleOwner, RoleAdmin},
		{RoleOwner, RoleMember},
		{RoleAdmin, RoleMember},
		{RoleEditor, RoleViewer},
	}
	for _, tc := range cases {
		if err := CheckMutate(tc.actor, tc.target, false); err != nil {
			t.Fatalf("CheckMutate(%q, %q) = %v, want nil", tc.actor, tc.target, err)
		}
	}
}
