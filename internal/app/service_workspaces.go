package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// MemberStatus reports the per-email outcome of a bulk membership
// operation. Unknown emails are skipped, not failed, so one typo does
// not abort the batch.
type MemberStatus struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

const (
	statusAdded         = "added"
	statusAlreadyMember = "already_member"
	statusSkipped       = "skipped"
	statusUpdated       = "updated"
	statusRemoved       = "removed"
)

// workspaceRoleOf resolves the user's role in the workspace, or
// Forbidden when no membership row exists.
func workspaceRoleOf(ctx context.Context, st store.Store, workspaceID, userID string) (rbac.Role, error) {
	m, err := st.GetWorkspaceMember(ctx, workspaceID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errForbidden("Not a workspace member")
	}
	if err != nil {
		return "", err
	}
	return rbac.Role(m.Role), nil
}

// mapAuthorityErr converts rbac sentinel errors into the HTTP taxonomy.
func mapAuthorityErr(err error) error {
	switch {
	case errors.Is(err, rbac.ErrNoAuthority):
		return errForbidden("Role holds no member-management rights")
	case errors.Is(err, rbac.ErrTargetIsOwner):
		return errForbidden("Owners cannot be modified or removed")
	case errors.Is(err, rbac.ErrPeerProtection):
		return errForbidden("Cannot act on a member of the same tier")
	case errors.Is(err, rbac.ErrSelfTarget):
		return errConflict("Cannot target yourself; use leave instead")
	default:
		return err
	}
}

func (s *Service) CreateWorkspace(ctx context.Context, actorID, name string) (store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Workspace{}, errValidation("name is required", nil)
	}

	workspace := store.Workspace{
		ID:        util.NewID("ws"),
		Name:      name,
		CreatedBy: actorID,
	}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.InsertWorkspace(ctx, workspace); err != nil {
			return err
		}
		return tx.InsertWorkspaceMember(ctx, workspace.ID, actorID, string(rbac.RoleOwner))
	})
	if err != nil {
		return store.Workspace{}, err
	}
	return workspace, nil
}

func (s *Service) ListWorkspaces(ctx context.Context, actorID string) ([]store.Workspace, error) {
	return s.store.ListWorkspacesForUser(ctx, actorID)
}

func (s *Service) GetWorkspace(ctx context.Context, actorID, workspaceID string) (store.Workspace, error) {
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, err
	}
	if _, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID); err != nil {
		return store.Workspace{}, err
	}
	return workspace, nil
}

func (s *Service) ListWorkspaceMembers(ctx context.Context, actorID, workspaceID string) ([]store.MemberInfo, error) {
	if _, err := s.GetWorkspace(ctx, actorID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListWorkspaceMembers(ctx, workspaceID)
}

// InviteWorkspaceMember adds a single known user by id.
func (s *Service) InviteWorkspaceMember(ctx context.Context, actorID, workspaceID, targetUserID, role string) error {
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return err
	}
	if !rbac.Can(actorRole, rbac.ActionManageMembers) {
		return errForbidden("Role holds no member-management rights")
	}
	if targetUserID == actorID {
		return errConflict("Cannot invite yourself")
	}
	if _, err := s.store.GetUserByID(ctx, targetUserID); err != nil {
		return err
	}
	if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, targetUserID); err == nil {
		return errConflict("User is already a workspace member")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	newRole := rbac.NormalizeWorkspaceRole(role)
	if newRole == rbac.RoleOwner {
		return errValidation("cannot grant the owner role", nil)
	}
	if err := s.store.InsertWorkspaceMember(ctx, workspaceID, targetUserID, string(newRole)); err != nil {
		return err
	}
	if user, err := s.store.GetUserByID(ctx, targetUserID); err == nil {
		if workspace, err := s.store.GetWorkspace(ctx, workspaceID); err == nil {
			actor, _ := s.store.GetUserByID(ctx, actorID)
			s.notifyAdded(user, actor.FullName, "workspace", workspace.Name, newRole)
		}
	}
	return nil
}

// AddWorkspaceMembersByEmail adds every resolvable address. Unknown
// emails are skipped; existing members are reported, not failed.
func (s *Service) AddWorkspaceMembersByEmail(ctx context.Context, actorID, workspaceID string, emails []string, role string) ([]MemberStatus, error) {
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(actorRole, rbac.ActionManageMembers) {
		return nil, errForbidden("Role holds no member-management rights")
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	newRole := rbac.NormalizeWorkspaceRole(role)
	if newRole == rbac.RoleOwner {
		return nil, errValidation("cannot grant the owner role", nil)
	}
	actor, _ := s.store.GetUserByID(ctx, actorID)

	results := make([]MemberStatus, 0, len(emails))
	var added []store.User
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		for _, raw := range emails {
			address := strings.TrimSpace(raw)
			if address == "" {
				continue
			}
			user, err := tx.GetUserByEmail(ctx, address)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			if _, err := tx.GetWorkspaceMember(ctx, workspaceID, user.ID); err == nil {
				results = append(results, MemberStatus{Email: address, Status: statusAlreadyMember})
				continue
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err := tx.InsertWorkspaceMember(ctx, workspaceID, user.ID, string(newRole)); err != nil {
				return err
			}
			results = append(results, MemberStatus{Email: address, Status: statusAdded})
			added = append(added, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Notify only once the whole batch has committed.
	for _, user := range added {
		s.notifyAdded(user, actor.FullName, "workspace", workspace.Name, newRole)
	}
	return results, nil
}

// RoleUpdate is one email→role assignment in a bulk role change.
type RoleUpdate struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UpdateWorkspaceRolesByEmail applies role changes under the authority
// rules. Demoting an admin revokes their board memberships in the
// workspace, since board access was granted on the strength of the
// admin role.
func (s *Service) UpdateWorkspaceRolesByEmail(ctx context.Context, actorID, workspaceID string, updates []RoleUpdate) ([]MemberStatus, error) {
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	results := make([]MemberStatus, 0, len(updates))
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		for _, update := range updates {
			address := strings.TrimSpace(update.Email)
			if address == "" {
				continue
			}
			user, err := tx.GetUserByEmail(ctx, address)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			member, err := tx.GetWorkspaceMember(ctx, workspaceID, user.ID)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			targetRole := rbac.Role(member.Role)
			if err := rbac.CheckMutate(actorRole, targetRole, user.ID == actorID); err != nil {
				return mapAuthorityErr(err)
			}
			newRole := rbac.NormalizeWorkspaceRole(update.Role)
			if newRole == rbac.RoleOwner {
				return errValidation("cannot grant the owner role", nil)
			}
			if err := tx.UpdateWorkspaceMemberRole(ctx, workspaceID, user.ID, string(newRole)); err != nil {
				return err
			}
			if targetRole == rbac.RoleAdmin && newRole == rbac.RoleMember {
				if err := tx.RemoveBoardMembershipsInWorkspace(ctx, workspaceID, user.ID); err != nil {
					return err
				}
			}
			results = append(results, MemberStatus{Email: address, Status: statusUpdated})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// KickWorkspaceMembersByEmail removes members and their board rows in
// the workspace, one transaction for the whole batch.
func (s *Service) KickWorkspaceMembersByEmail(ctx context.Context, actorID, workspaceID string, emails []string) ([]MemberStatus, error) {
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	results := make([]MemberStatus, 0, len(emails))
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		for _, raw := range emails {
			address := strings.TrimSpace(raw)
			if address == "" {
				continue
			}
			user, err := tx.GetUserByEmail(ctx, address)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			member, err := tx.GetWorkspaceMember(ctx, workspaceID, user.ID)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			if err := rbac.CheckMutate(actorRole, rbac.Role(member.Role), user.ID == actorID); err != nil {
				return mapAuthorityErr(err)
			}
			if err := tx.RemoveBoardMembershipsInWorkspace(ctx, workspaceID, user.ID); err != nil {
				return err
			}
			if err := tx.RemoveWorkspaceMember(ctx, workspaceID, user.ID); err != nil {
				return err
			}
			results = append(results, MemberStatus{Email: address, Status: statusRemoved})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// LeaveWorkspace removes the caller's own membership. An owner can
// leave only as the last member, which retires the workspace itself.
func (s *Service) LeaveWorkspace(ctx context.Context, actorID, workspaceID string) error {
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return err
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Store) error {
		if actorRole == rbac.RoleOwner {
			count, err := tx.CountWorkspaceMembers(ctx, workspaceID)
			if err != nil {
				return err
			}
			if count > 1 {
				return errConflict("Owner cannot leave while other members remain")
			}
			return tx.DeleteWorkspace(ctx, workspaceID)
		}
		if err := tx.RemoveBoardMembershipsInWorkspace(ctx, workspaceID, actorID); err != nil {
			return err
		}
		return tx.RemoveWorkspaceMember(ctx, workspaceID, actorID)
	})
}

// DeleteWorkspace tears the whole tree down. Owner only, and only once
// every other member has been removed.
func (s *Service) DeleteWorkspace(ctx context.Context, actorID, workspaceID string) error {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return err
	}
	if !rbac.Can(actorRole, rbac.ActionDeleteScope) {
		return errForbidden("Only the owner can delete a workspace")
	}
	return s.store.WithTx(ctx, func(tx store.Store) error {
		count, err := tx.CountWorkspaceMembers(ctx, workspaceID)
		if err != nil {
			return err
		}
		if count > 1 {
			return errConflict("Remove other members before deleting the workspace")
		}
		return tx.DeleteWorkspace(ctx, workspaceID)
	})
}
