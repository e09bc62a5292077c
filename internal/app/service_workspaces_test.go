package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

func memberRow(role string) func(context.Context, string, string) (store.Membership, error) {
	return func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
		return store.Membership{ScopeID: workspaceID, UserID: userID, Role: role}, nil
	}
}

func TestCreateWorkspaceSeedsOwnerMembership(t *testing.T) {
	var insertedWorkspace store.Workspace
	var memberUser, memberRole string
	fs := &fakeStore{
		insertWorkspaceFn: func(_ context.Context, ws store.Workspace) error {
			insertedWorkspace = ws
			return nil
		},
		insertWorkspaceMemberFn: func(_ context.Context, _, userID, role string) error {
			memberUser, memberRole = userID, role
			return nil
		},
	}
	svc := newTestService(fs)

	ws, err := svc.CreateWorkspace(context.Background(), "user-1", "  Design Team  ")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if ws.Name != "Design Team" {
		t.Fatalf("expected trimmed name, got %q", ws.Name)
	}
	if insertedWorkspace.ID == "" || insertedWorkspace.ID != ws.ID {
		t.Fatalf("workspace row not inserted: %+v", insertedWorkspace)
	}
	if memberUser != "user-1" || memberRole != "owner" {
		t.Fatalf("expected creator seeded as owner, got user=%q role=%q", memberUser, memberRole)
	}
}

func TestCreateWorkspaceRequiresName(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateWorkspace(context.Background(), "user-1", "   ")
	assertDomainCode(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestGetWorkspaceRequiresMembership(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, Name: "Team"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.GetWorkspace(context.Background(), "outsider", "ws-1")
	assertDomainCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestGetWorkspaceUnknownIsNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GetWorkspace(context.Background(), "user-1", "ws-missing")
	status, code, _, _ := mapError(err)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("expected 404/NOT_FOUND, got %d/%s", status, code)
	}
}

func TestAddWorkspaceMembersByEmailReportsPerAddress(t *testing.T) {
	users := map[string]store.User{
		"new@example.com":      {ID: "user-new", Email: "new@example.com"},
		"existing@example.com": {ID: "user-existing", Email: "existing@example.com"},
	}
	var inserted []string
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, Name: "Team"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			switch userID {
			case "actor-1":
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
			case "user-existing":
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "member"}, nil
			}
			return store.Membership{}, sql.ErrNoRows
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if user, ok := users[email]; ok {
				return user, nil
			}
			return store.User{}, sql.ErrNoRows
		},
		insertWorkspaceMemberFn: func(_ context.Context, _, userID, _ string) error {
			inserted = append(inserted, userID)
			return nil
		},
	}
	svc := newTestService(fs)

	results, err := svc.AddWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1",
		[]string{"new@example.com", "existing@example.com", "unknown@example.com"}, "member")
	if err != nil {
		t.Fatalf("AddWorkspaceMembersByEmail: %v", err)
	}

	want := map[string]string{
		"new@example.com":      "added",
		"existing@example.com": "already_member",
		"unknown@example.com":  "skipped",
	}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d: %+v", len(want), len(results), results)
	}
	for _, result := range results {
		if want[result.Email] != result.Status {
			t.Fatalf("email %s: expected status %q, got %q", result.Email, want[result.Email], result.Status)
		}
	}
	if len(inserted) != 1 || inserted[0] != "user-new" {
		t.Fatalf("expected only user-new inserted, got %v", inserted)
	}
}

func TestAddWorkspaceMembersRejectsOwnerGrant(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("owner"),
	}
	svc := newTestService(fs)

	_, err := svc.AddWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1", []string{"a@example.com"}, "owner")
	assertDomainCode(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestAddWorkspaceMembersRequiresManagementRights(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceMemberFn: memberRow("member"),
	}
	svc := newTestService(fs)

	_, err := svc.AddWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1", []string{"a@example.com"}, "member")
	assertDomainCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestUpdateWorkspaceRolesPeerProtection(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			// actor and target are both admins
			return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-peer", Email: email}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateWorkspaceRolesByEmail(context.Background(), "actor-1", "ws-1",
		[]RoleUpdate{{Email: "peer@example.com", Role: "member"}})
	assertDomainCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestUpdateWorkspaceRolesSelfTargetConflicts(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("admin"),
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "actor-1", Email: email}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateWorkspaceRolesByEmail(context.Background(), "actor-1", "ws-1",
		[]RoleUpdate{{Email: "me@example.com", Role: "member"}})
	assertDomainCode(t, err, http.StatusConflict, "CONFLICT")
}

func TestAdminDemotionRevokesBoardMemberships(t *testing.T) {
	var revokedUser string
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			if userID == "actor-1" {
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "owner"}, nil
			}
			return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-admin", Email: email}, nil
		},
		removeBoardMembershipsInWorkspaceFn: func(_ context.Context, _, userID string) error {
			revokedUser = userID
			return nil
		},
	}
	svc := newTestService(fs)

	results, err := svc.UpdateWorkspaceRolesByEmail(context.Background(), "actor-1", "ws-1",
		[]RoleUpdate{{Email: "admin@example.com", Role: "member"}})
	if err != nil {
		t.Fatalf("UpdateWorkspaceRolesByEmail: %v", err)
	}
	if len(results) != 1 || results[0].Status != "updated" {
		t.Fatalf("expected one updated result, got %+v", results)
	}
	if revokedUser != "user-admin" {
		t.Fatalf("expected board memberships revoked for user-admin, got %q", revokedUser)
	}
}

func TestKickWorkspaceMembersCannotRemoveOwner(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			if userID == "actor-1" {
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
			}
			return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "owner"}, nil
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-owner", Email: email}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.KickWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1", []string{"owner@example.com"})
	assertDomainCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestKickWorkspaceMembersRemovesBoardRowsFirst(t *testing.T) {
	var calls []string
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			if userID == "actor-1" {
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "owner"}, nil
			}
			return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "member"}, nil
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-2", Email: email}, nil
		},
		removeBoardMembershipsInWorkspaceFn: func(_ context.Context, _, _ string) error {
			calls = append(calls, "boards")
			return nil
		},
		removeWorkspaceMemberFn: func(_ context.Context, _, _ string) error {
			calls = append(calls, "workspace")
			return nil
		},
	}
	svc := newTestService(fs)

	results, err := svc.KickWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1", []string{"m@example.com"})
	if err != nil {
		t.Fatalf("KickWorkspaceMembersByEmail: %v", err)
	}
	if len(results) != 1 || results[0].Status != "removed" {
		t.Fatalf("expected one removed result, got %+v", results)
	}
	if len(calls) != 2 || calls[0] != "boards" || calls[1] != "workspace" {
		t.Fatalf("expected board rows removed before the workspace row, got %v", calls)
	}
}

func TestLeaveWorkspaceOwnerBlockedWhileMembersRemain(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("owner"),
		countWorkspaceMembersFn: func(_ context.Context, _ string) (int, error) {
			return 3, nil
		},
	}
	svc := newTestService(fs)

	err := svc.LeaveWorkspace(context.Background(), "actor-1", "ws-1")
	assertDomainCode(t, err, http.StatusConflict, "CONFLICT")
}

func TestLeaveWorkspaceSoleOwnerRetiresWorkspace(t *testing.T) {
	var deleted string
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("owner"),
		countWorkspaceMembersFn: func(_ context.Context, _ string) (int, error) {
			return 1, nil
		},
		deleteWorkspaceFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.LeaveWorkspace(context.Background(), "actor-1", "ws-1"); err != nil {
		t.Fatalf("LeaveWorkspace: %v", err)
	}
	if deleted != "ws-1" {
		t.Fatalf("expected workspace deleted, got %q", deleted)
	}
}

func TestDeleteWorkspaceRequiresOwner(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("admin"),
	}
	svc := newTestService(fs)

	err := svc.DeleteWorkspace(context.Background(), "actor-1", "ws-1")
	assertDomainCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestDeleteWorkspaceBlockedWhileMembersRemain(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id}, nil
		},
		getWorkspaceMemberFn: memberRow("owner"),
		countWorkspaceMembersFn: func(_ context.Context, _ string) (int, error) {
			return 3, nil
		},
		deleteWorkspaceFn: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteWorkspace(context.Background(), "actor-1", "ws-1")
	assertDomainCode(t, err, http.StatusConflict, "CONFLICT")
	if deleted {
		t.Fatal("workspace must not be deleted while other members remain")
	}
}

func TestAddWorkspaceMembersFailedBatchSendsNoEmails(t *testing.T) {
	users := map[string]store.User{
		"first@example.com":  {ID: "user-first", Email: "first@example.com"},
		"second@example.com": {ID: "user-second", Email: "second@example.com"},
	}
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, Name: "Team"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			if userID == "actor-1" {
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
			}
			return store.Membership{}, sql.ErrNoRows
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if user, ok := users[email]; ok {
				return user, nil
			}
			return store.User{}, sql.ErrNoRows
		},
		insertWorkspaceMemberFn: func(_ context.Context, _, userID, _ string) error {
			if userID == "user-second" {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	svc := newTestService(fs)
	var notified []string
	svc.notify = func(user store.User, _, _, _ string, _ rbac.Role) {
		notified = append(notified, user.Email)
	}

	_, err := svc.AddWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1",
		[]string{"first@example.com", "second@example.com"}, "member")
	if err == nil {
		t.Fatal("expected batch to fail on the second insert")
	}
	// The first insert was rolled back with the batch, so nobody hears
	// about a membership that never landed.
	if len(notified) != 0 {
		t.Fatalf("expected no notifications after rollback, got %v", notified)
	}
}

func TestAddWorkspaceMembersNotifiesAfterCommit(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, Name: "Team"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.Membership, error) {
			if userID == "actor-1" {
				return store.Membership{ScopeID: workspaceID, UserID: userID, Role: "admin"}, nil
			}
			return store.Membership{}, sql.ErrNoRows
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			return store.User{ID: "user-new", Email: email}, nil
		},
	}
	svc := newTestService(fs)
	var notified []string
	svc.notify = func(user store.User, _, scopeKind, _ string, _ rbac.Role) {
		if scopeKind != "workspace" {
			t.Fatalf("expected workspace notice, got %q", scopeKind)
		}
		notified = append(notified, user.Email)
	}

	_, err := svc.AddWorkspaceMembersByEmail(context.Background(), "actor-1", "ws-1",
		[]string{"new@example.com"}, "member")
	if err != nil {
		t.Fatalf("AddWorkspaceMembersByEmail: %v", err)
	}
	if len(notified) != 1 || notified[0] != "new@example.com" {
		t.Fatalf("expected one notice to the added member, got %v", notified)
	}
}
