package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO boards (id, workspace_id, name, created_by) VALUES ($1, $2, $3, $4)`,
		board.ID, board.WorkspaceID, board.Name, board.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, id string) (Board, error) {
	var b Board
	err := s.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, created_by, created_at FROM boards WHERE id = $1`, id).
		Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return Board{}, err
	}
	return b, nil
}

// GetBoardInWorkspace fetches a board only when it belongs to the given
// workspace, so workspace-scoped routes cannot reach across tenants.
func (s *PostgresStore) GetBoardInWorkspace(ctx context.Context, boardID, workspaceID string) (Board, error) {
	var b Board
	err := s.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, created_by, created_at
		FROM boards WHERE id = $1 AND workspace_id = $2`, boardID, workspaceID).
		Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return Board{}, err
	}
	return b, nil
}

// ListBoardsForUser returns the boards the user is a member of. An
// empty workspaceID means across all workspaces.
func (s *PostgresStore) ListBoardsForUser(ctx context.Context, workspaceID, userID string) ([]Board, error) {
	query := `
		SELECT b.id, b.workspace_id, b.name, b.created_by, b.created_at
		FROM boards b
		JOIN board_users bu ON bu.board_id = b.id
		WHERE bu.user_id = $1`
	args := []any{userID}
	if workspaceID != "" {
		query += ` AND b.workspace_id = $2`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY b.created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()
	return scanBoards(rows)
}

// SearchBoardsForUser is the SQL fallback for board search when the
// search index is unavailable: case-insensitive substring on the name,
// restricted to boards the user belongs to.
func (s *PostgresStore) SearchBoardsForUser(ctx context.Context, workspaceID, userID, name string) ([]Board, error) {
	query := `
		SELECT b.id, b.workspace_id, b.name, b.created_by, b.created_at
		FROM boards b
		JOIN board_users bu ON bu.board_id = b.id
		WHERE bu.user_id = $1 AND b.name ILIKE $2`
	args := []any{userID, "%" + escapeLike(name) + "%"}
	if workspaceID != "" {
		query += ` AND b.workspace_id = $3`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY b.name ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search boards: %w", err)
	}
	defer rows.Close()
	return scanBoards(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanBoards(rows *sql.Rows) ([]Board, error) {
	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Name, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RenameBoard(ctx context.Context, id, name string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE boards SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("rename board: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetBoardMember(ctx context.Context, boardID, userID string) (Membership, error) {
	m := Membership{ScopeID: boardID, UserID: userID}
	err := s.q.QueryRowContext(ctx, `
		SELECT role FROM board_users WHERE board_id = $1 AND user_id = $2`,
		boardID, userID).Scan(&m.Role)
	if err != nil {
		return Membership{}, err
	}
	return m, nil
}

func (s *PostgresStore) ListBoardMembers(ctx context.Context, boardID string) ([]MemberInfo, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT u.id, u.email, u.full_name, u.avatar_url, bu.role
		FROM board_users bu
		JOIN users u ON u.id = bu.user_id
		WHERE bu.board_id = $1
		ORDER BY bu.created_at ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	var out []MemberInfo
	for rows.Next() {
		var m MemberInfo
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.AvatarURL, &m.Role); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertBoardMember(ctx context.Context, boardID, userID, role string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO board_users (board_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (board_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		boardID, userID, role)
	if err != nil {
		return fmt.Errorf("upsert board member: %w", err)
	}
	return nil
}

// InsertBoardMembers adds each membership, skipping users already on
// the board.
func (s *PostgresStore) InsertBoardMembers(ctx context.Context, boardID string, members []Membership) error {
	for _, m := range members {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO board_users (board_id, user_id, role) VALUES ($1, $2, $3)
			ON CONFLICT (board_id, user_id) DO NOTHING`,
			boardID, m.UserID, m.Role)
		if err != nil {
			return fmt.Errorf("insert board member: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateBoardMemberRole(ctx context.Context, boardID, userID, role string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE board_users SET role = $3 WHERE board_id = $1 AND user_id = $2`,
		boardID, userID, role)
	if err != nil {
		return fmt.Errorf("update board member role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM board_users WHERE board_id = $1 AND user_id = $2`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove board member: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RemoveBoardMembershipsInWorkspace drops the user's memberships on
// every board of the workspace. Used when a member is kicked or an
// admin is demoted.
func (s *PostgresStore) RemoveBoardMembershipsInWorkspace(ctx context.Context, workspaceID, userID string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM board_users
		WHERE user_id = $2
		  AND board_id IN (SELECT id FROM boards WHERE workspace_id = $1)`,
		workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove board memberships: %w", err)
	}
	return nil
}
