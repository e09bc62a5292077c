package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, created_by) VALUES ($1, $2, $3)`,
		workspace.ID, workspace.Name, workspace.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (Workspace, error) {
	var w Workspace
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at FROM workspaces WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return w, nil
}

// DeleteWorkspace removes the workspace row; memberships, boards and
// everything below them go with it via cascading foreign keys.
func (s *PostgresStore) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT w.id, w.name, w.created_by, w.created_at
		FROM workspaces w
		JOIN workspace_users wu ON wu.workspace_id = w.id
		WHERE wu.user_id = $1
		ORDER BY w.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountWorkspaceMembers(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_users WHERE workspace_id = $1`, workspaceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count workspace members: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (Membership, error) {
	m := Membership{ScopeID: workspaceID, UserID: userID}
	err := s.q.QueryRowContext(ctx, `
		SELECT role FROM workspace_users WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID).Scan(&m.Role)
	if err != nil {
		return Membership{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]MemberInfo, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.email, u.full_name, u.avatar_url, wu.role
		FROM workspace_users wu
		JOIN users u ON u.id = wu.user_id
		WHERE wu.workspace_id = $1
		ORDER BY wu.created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()

	var out []MemberInfo
	for rows.Next() {
		var m MemberInfo
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.AvatarURL, &m.Role); err != nil {
			return nil, fmt.Errorf("scan workspace member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListWorkspaceAdmins returns the owner and admin memberships of a
// workspace. Board creation seeds these users as editors.
func (s *PostgresStore) ListWorkspaceAdmins(ctx context.Context, workspaceID string) ([]Membership, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT workspace_id, user_id, role FROM workspace_users
		WHERE workspace_id = $1 AND role IN ('owner', 'admin')`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace admins: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ScopeID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan workspace admin: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workspace_users (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("insert workspace member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE workspace_users SET role = $3 WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("update workspace member role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM workspace_users WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove workspace member: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
