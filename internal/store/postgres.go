package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Store methods run against it so the same code serves both direct
// calls and calls composed inside WithTx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the data access surface the services depend on. Every
// multi-step read-modify-write goes through WithTx, which hands the
// callback a Store bound to one transaction; returning an error rolls
// back, returning nil commits.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error

	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertWorkspace(ctx context.Context, workspace Workspace) error
	GetWorkspace(ctx context.Context, id string) (Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
	ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error)
	CountWorkspaceMembers(ctx context.Context, workspaceID string) (int, error)
	GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (Membership, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]MemberInfo, error)
	ListWorkspaceAdmins(ctx context.Context, workspaceID string) ([]Membership, error)
	InsertWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error
	UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) error
	RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error

	InsertBoard(ctx context.Context, board Board) error
	GetBoard(ctx context.Context, id string) (Board, error)
	GetBoardInWorkspace(ctx context.Context, boardID, workspaceID string) (Board, error)
	ListBoardsForUser(ctx context.Context, workspaceID, userID string) ([]Board, error)
	SearchBoardsForUser(ctx context.Context, workspaceID, userID, name string) ([]Board, error)
	RenameBoard(ctx context.Context, id, name string) error
	DeleteBoard(ctx context.Context, id string) error
	GetBoardMember(ctx context.Context, boardID, userID string) (Membership, error)
	ListBoardMembers(ctx context.Context, boardID string) ([]MemberInfo, error)
	UpsertBoardMember(ctx context.Context, boardID, userID, role string) error
	InsertBoardMembers(ctx context.Context, boardID string, members []Membership) error
	UpdateBoardMemberRole(ctx context.Context, boardID, userID, role string) error
	RemoveBoardMember(ctx context.Context, boardID, userID string) error
	RemoveBoardMembershipsInWorkspace(ctx context.Context, workspaceID, userID string) error

	InsertOrderable(ctx context.Context, kind Kind, row Orderable) error
	GetOrderable(ctx context.Context, kind Kind, id string) (Orderable, error)
	GetOrderableInParent(ctx context.Context, kind Kind, id, parentID string) (Orderable, error)
	ListOrderables(ctx context.Context, kind Kind, parentID string) ([]Orderable, error)
	MaxOrderablePosition(ctx context.Context, kind Kind, parentID string) (float64, error)
	RenameOrderable(ctx context.Context, kind Kind, id, name string) error
	UpdateTaskDescription(ctx context.Context, id, description string) error
	DeleteOrderable(ctx context.Context, kind Kind, id string) error
	UpdateOrderablePosition(ctx context.Context, kind Kind, id string, position float64) error
	MoveOrderable(ctx context.Context, kind Kind, id, parentID string, position float64) error
}

type PostgresStore struct {
	db *sql.DB
	q  Querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn against a Store bound to a single transaction. Nested
// calls reuse the enclosing transaction rather than opening a new one.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
