package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// boardRoleOf resolves the user's role on the board, or Forbidden when
// no membership row exists. Workspace membership alone grants nothing
// here: board visibility is board membership.
func boardRoleOf(ctx context.Context, st store.Store, boardID, userID string) (rbac.Role, error) {
	m, err := st.GetBoardMember(ctx, boardID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errForbidden("Not a board member")
	}
	if err != nil {
		return "", err
	}
	return rbac.Role(m.Role), nil
}

// CreateBoard creates a board in a workspace. The creator and every
// workspace owner/admin are seeded as board editors so workspace
// leadership can always see what exists.
func (s *Service) CreateBoard(ctx context.Context, actorID, workspaceID, name string) (store.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Board{}, errValidation("name is required", nil)
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return store.Board{}, err
	}
	actorRole, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
	if err != nil {
		return store.Board{}, err
	}
	if !rbac.Can(actorRole, rbac.ActionWrite) {
		return store.Board{}, errForbidden("Only workspace owners and admins can create boards")
	}

	board := store.Board{
		ID:          util.NewID("brd"),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedBy:   actorID,
	}
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.InsertBoard(ctx, board); err != nil {
			return err
		}
		admins, err := tx.ListWorkspaceAdmins(ctx, workspaceID)
		if err != nil {
			return err
		}
		seeds := []store.Membership{{UserID: actorID, Role: string(rbac.RoleEditor)}}
		for _, admin := range admins {
			if admin.UserID == actorID {
				continue
			}
			seeds = append(seeds, store.Membership{UserID: admin.UserID, Role: string(rbac.RoleEditor)})
		}
		return tx.InsertBoardMembers(ctx, board.ID, seeds)
	})
	if err != nil {
		return store.Board{}, err
	}
	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: board.ID, Name: board.Name, WorkspaceID: workspaceID})
	}
	return board, nil
}

func (s *Service) GetBoard(ctx context.Context, actorID, boardID string) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if _, err := boardRoleOf(ctx, s.store, boardID, actorID); err != nil {
		return store.Board{}, err
	}
	return board, nil
}

// ListBoards returns the boards the caller belongs to within one
// workspace.
func (s *Service) ListBoards(ctx context.Context, actorID, workspaceID string) ([]store.Board, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	if _, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListBoardsForUser(ctx, workspaceID, actorID)
}

// ListAllBoards returns the caller's boards across every workspace.
func (s *Service) ListAllBoards(ctx context.Context, actorID string) ([]store.Board, error) {
	return s.store.ListBoardsForUser(ctx, "", actorID)
}

// SearchBoards finds the caller's boards by case-insensitive name
// match, ordered by name. Plain members hold read-only workspace
// standing and are not served the search surface.
func (s *Service) SearchBoards(ctx context.Context, actorID, workspaceID, name string) ([]store.Board, error) {
	if workspaceID != "" {
		if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
			return nil, err
		}
		role, err := workspaceRoleOf(ctx, s.store, workspaceID, actorID)
		if err != nil {
			return nil, err
		}
		if rbac.Tier(role) <= 1 {
			return nil, errForbidden("Role cannot search boards")
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errValidation("search term is required", nil)
	}
	return s.store.SearchBoardsForUser(ctx, workspaceID, actorID, name)
}

func (s *Service) RenameBoard(ctx context.Context, actorID, boardID, name string) (store.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Board{}, errValidation("name is required", nil)
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	role, err := boardRoleOf(ctx, s.store, boardID, actorID)
	if err != nil {
		return store.Board{}, err
	}
	if !rbac.Can(role, rbac.ActionWrite) {
		return store.Board{}, errForbidden("Viewers cannot rename boards")
	}
	if err := s.store.RenameBoard(ctx, boardID, name); err != nil {
		return store.Board{}, err
	}
	board.Name = name
	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: board.ID, Name: name, WorkspaceID: board.WorkspaceID})
	}
	return board, nil
}

func (s *Service) ListBoardMembers(ctx context.Context, actorID, boardID string) ([]store.MemberInfo, error) {
	if _, err := s.GetBoard(ctx, actorID, boardID); err != nil {
		return nil, err
	}
	return s.store.ListBoardMembers(ctx, boardID)
}

// AddBoardMembersByEmail grants board access. The actor must lead the
// board's workspace; targets must already be workspace members.
func (s *Service) AddBoardMembersByEmail(ctx context.Context, actorID, boardID string, emails []string, role string) ([]MemberStatus, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	actorRole, err := workspaceRoleOf(ctx, s.store, board.WorkspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(actorRole, rbac.ActionManageMembers) {
		return nil, errForbidden("Role holds no member-management rights")
	}

	newRole := rbac.NormalizeBoardRole(role)
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
			if _, err := tx.GetWorkspaceMember(ctx, board.WorkspaceID, user.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					results = append(results, MemberStatus{Email: address, Status: statusSkipped})
					continue
				}
				return err
			}
			if _, err := tx.GetBoardMember(ctx, boardID, user.ID); err == nil {
				results = append(results, MemberStatus{Email: address, Status: statusAlreadyMember})
				continue
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err := tx.UpsertBoardMember(ctx, boardID, user.ID, string(newRole)); err != nil {
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
		s.notifyAdded(user, actor.FullName, "board", board.Name, newRole)
	}
	return results, nil
}

// UpdateBoardRolesByEmail changes board roles. Authority is judged on
// WORKSPACE roles: the board tier says what a member may do on the
// board, the workspace tier says who may manage whom.
func (s *Service) UpdateBoardRolesByEmail(ctx context.Context, actorID, boardID string, updates []RoleUpdate) ([]MemberStatus, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	actorRole, err := workspaceRoleOf(ctx, s.store, board.WorkspaceID, actorID)
	if err != nil {
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
			targetMember, err := tx.GetWorkspaceMember(ctx, board.WorkspaceID, user.ID)
			if errors.Is(err, sql.ErrNoRows) {
				results = append(results, MemberStatus{Email: address, Status: statusSkipped})
				continue
			}
			if err != nil {
				return err
			}
			if _, err := tx.GetBoardMember(ctx, boardID, user.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					results = append(results, MemberStatus{Email: address, Status: statusSkipped})
					continue
				}
				return err
			}
			if err := rbac.CheckMutate(actorRole, rbac.Role(targetMember.Role), user.ID == actorID); err != nil {
				return mapAuthorityErr(err)
			}
			newRole := rbac.NormalizeBoardRole(update.Role)
			if err := tx.UpdateBoardMemberRole(ctx, boardID, user.ID, string(newRole)); err != nil {
				return err
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

// KickBoardMembersByEmail revokes board access. Unlike the add path, a
// target missing from the board is an error: the caller named someone
// specific to remove.
func (s *Service) KickBoardMembersByEmail(ctx context.Context, actorID, boardID string, emails []string) ([]MemberStatus, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	actorRole, err := workspaceRoleOf(ctx, s.store, board.WorkspaceID, actorID)
	if err != nil {
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
				return errNotFound("No account for " + address)
			}
			if err != nil {
				return err
			}
			targetMember, err := tx.GetWorkspaceMember(ctx, board.WorkspaceID, user.ID)
			if errors.Is(err, sql.ErrNoRows) {
				return errNotFound(address + " is not a workspace member")
			}
			if err != nil {
				return err
			}
			if _, err := tx.GetBoardMember(ctx, boardID, user.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errNotFound(address + " is not a board member")
				}
				return err
			}
			if err := rbac.CheckMutate(actorRole, rbac.Role(targetMember.Role), user.ID == actorID); err != nil {
				return mapAuthorityErr(err)
			}
			if err := tx.RemoveBoardMember(ctx, boardID, user.ID); err != nil {
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

// LeaveBoard drops the caller's own board membership.
func (s *Service) LeaveBoard(ctx context.Context, actorID, boardID string) error {
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return err
	}
	if _, err := boardRoleOf(ctx, s.store, boardID, actorID); err != nil {
		return err
	}
	return s.store.RemoveBoardMember(ctx, boardID, actorID)
}

// DeleteBoard removes the board and its whole subtree.
func (s *Service) DeleteBoard(ctx context.Context, actorID, boardID string) error {
	if _, err := s.store.GetBoard(ctx, boardID); err != nil {
		return err
	}
	role, err := boardRoleOf(ctx, s.store, boardID, actorID)
	if err != nil {
		return err
	}
	if !rbac.Can(role, rbac.ActionWrite) {
		return errForbidden("Viewers cannot delete boards")
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
	}
	return nil
}
