package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/api/internal/config"
	"taskboard/api/internal/store"
)

// fakeStore implements store.Store with overridable fn fields. Methods
// without an override return the zero value, or sql.ErrNoRows where a
// lookup is expected to miss.
type fakeStore struct {
	getUserByIDFn      func(ctx context.Context, id string) (store.User, error)
	getUserByEmailFn   func(ctx context.Context, email string) (store.User, error)
	updateUserAvatarFn func(ctx context.Context, userID, avatarURL string) error

	saveRefreshSessionFn   func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	lookupRefreshSessionFn func(ctx context.Context, tokenHash string) (store.User, error)
	revokeRefreshSessionFn func(ctx context.Context, tokenHash string) error
	revokeAccessTokenFn    func(ctx context.Context, jti string, expiresAt time.Time) error
	isAccessTokenRevokedFn func(ctx context.Context, jti string) (bool, error)

	insertWorkspaceFn           func(ctx context.Context, ws store.Workspace) error
	getWorkspaceFn              func(ctx context.Context, id string) (store.Workspace, error)
	deleteWorkspaceFn           func(ctx context.Context, id string) error
	listWorkspacesForUserFn     func(ctx context.Context, userID string) ([]store.Workspace, error)
	countWorkspaceMembersFn     func(ctx context.Context, workspaceID string) (int, error)
	getWorkspaceMemberFn        func(ctx context.Context, workspaceID, userID string) (store.Membership, error)
	listWorkspaceMembersFn      func(ctx context.Context, workspaceID string) ([]store.MemberInfo, error)
	listWorkspaceAdminsFn       func(ctx context.Context, workspaceID string) ([]store.Membership, error)
	insertWorkspaceMemberFn     func(ctx context.Context, workspaceID, userID, role string) error
	updateWorkspaceMemberRoleFn func(ctx context.Context, workspaceID, userID, role string) error
	removeWorkspaceMemberFn     func(ctx context.Context, workspaceID, userID string) error

	insertBoardFn                       func(ctx context.Context, board store.Board) error
	getBoardFn                          func(ctx context.Context, id string) (store.Board, error)
	getBoardInWorkspaceFn               func(ctx context.Context, boardID, workspaceID string) (store.Board, error)
	listBoardsForUserFn                 func(ctx context.Context, workspaceID, userID string) ([]store.Board, error)
	searchBoardsForUserFn               func(ctx context.Context, workspaceID, userID, name string) ([]store.Board, error)
	renameBoardFn                       func(ctx context.Context, id, name string) error
	deleteBoardFn                       func(ctx context.Context, id string) error
	getBoardMemberFn                    func(ctx context.Context, boardID, userID string) (store.Membership, error)
	listBoardMembersFn                  func(ctx context.Context, boardID string) ([]store.MemberInfo, error)
	upsertBoardMemberFn                 func(ctx context.Context, boardID, userID, role string) error
	insertBoardMembersFn                func(ctx context.Context, boardID string, members []store.Membership) error
	updateBoardMemberRoleFn             func(ctx context.Context, boardID, userID, role string) error
	removeBoardMemberFn                 func(ctx context.Context, boardID, userID string) error
	removeBoardMembershipsInWorkspaceFn func(ctx context.Context, workspaceID, userID string) error

	insertOrderableFn         func(ctx context.Context, kind store.Kind, row store.Orderable) error
	getOrderableFn            func(ctx context.Context, kind store.Kind, id string) (store.Orderable, error)
	getOrderableInParentFn    func(ctx context.Context, kind store.Kind, id, parentID string) (store.Orderable, error)
	listOrderablesFn          func(ctx context.Context, kind store.Kind, parentID string) ([]store.Orderable, error)
	maxOrderablePositionFn    func(ctx context.Context, kind store.Kind, parentID string) (float64, error)
	renameOrderableFn         func(ctx context.Context, kind store.Kind, id, name string) error
	updateTaskDescriptionFn   func(ctx context.Context, id, description string) error
	deleteOrderableFn         func(ctx context.Context, kind store.Kind, id string) error
	updateOrderablePositionFn func(ctx context.Context, kind store.Kind, id string, position float64) error
	moveOrderableFn           func(ctx context.Context, kind store.Kind, id, parentID string, position float64) error
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(f)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error {
	if f.updateUserAvatarFn != nil {
		return f.updateUserAvatarFn(ctx, userID, avatarURL)
	}
	return nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, expiresAt)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) InsertWorkspace(ctx context.Context, ws store.Workspace) error {
	if f.insertWorkspaceFn != nil {
		return f.insertWorkspaceFn(ctx, ws)
	}
	return nil
}

func (f *fakeStore) GetWorkspace(ctx context.Context, id string) (store.Workspace, error) {
	if f.getWorkspaceFn != nil {
		return f.getWorkspaceFn(ctx, id)
	}
	return store.Workspace{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteWorkspace(ctx context.Context, id string) error {
	if f.deleteWorkspaceFn != nil {
		return f.deleteWorkspaceFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]store.Workspace, error) {
	if f.listWorkspacesForUserFn != nil {
		return f.listWorkspacesForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) CountWorkspaceMembers(ctx context.Context, workspaceID string) (int, error) {
	if f.countWorkspaceMembersFn != nil {
		return f.countWorkspaceMembersFn(ctx, workspaceID)
	}
	return 0, nil
}

func (f *fakeStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (store.Membership, error) {
	if f.getWorkspaceMemberFn != nil {
		return f.getWorkspaceMemberFn(ctx, workspaceID, userID)
	}
	return store.Membership{}, sql.ErrNoRows
}

func (f *fakeStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]store.MemberInfo, error) {
	if f.listWorkspaceMembersFn != nil {
		return f.listWorkspaceMembersFn(ctx, workspaceID)
	}
	return nil, nil
}

func (f *fakeStore) ListWorkspaceAdmins(ctx context.Context, workspaceID string) ([]store.Membership, error) {
	if f.listWorkspaceAdminsFn != nil {
		return f.listWorkspaceAdminsFn(ctx, workspaceID)
	}
	return nil, nil
}

func (f *fakeStore) InsertWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error {
	if f.insertWorkspaceMemberFn != nil {
		return f.insertWorkspaceMemberFn(ctx, workspaceID, userID, role)
	}
	return nil
}

func (f *fakeStore) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	if f.updateWorkspaceMemberRoleFn != nil {
		return f.updateWorkspaceMemberRoleFn(ctx, workspaceID, userID, role)
	}
	return nil
}

func (f *fakeStore) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	if f.removeWorkspaceMemberFn != nil {
		return f.removeWorkspaceMemberFn(ctx, workspaceID, userID)
	}
	return nil
}

func (f *fakeStore) InsertBoard(ctx context.Context, board store.Board) error {
	if f.insertBoardFn != nil {
		return f.insertBoardFn(ctx, board)
	}
	return nil
}

func (f *fakeStore) GetBoard(ctx context.Context, id string) (store.Board, error) {
	if f.getBoardFn != nil {
		return f.getBoardFn(ctx, id)
	}
	return store.Board{}, sql.ErrNoRows
}

func (f *fakeStore) GetBoardInWorkspace(ctx context.Context, boardID, workspaceID string) (store.Board, error) {
	if f.getBoardInWorkspaceFn != nil {
		return f.getBoardInWorkspaceFn(ctx, boardID, workspaceID)
	}
	return store.Board{}, sql.ErrNoRows
}

func (f *fakeStore) ListBoardsForUser(ctx context.Context, workspaceID, userID string) ([]store.Board, error) {
	if f.listBoardsForUserFn != nil {
		return f.listBoardsForUserFn(ctx, workspaceID, userID)
	}
	return nil, nil
}

func (f *fakeStore) SearchBoardsForUser(ctx context.Context, workspaceID, userID, name string) ([]store.Board, error) {
	if f.searchBoardsForUserFn != nil {
		return f.searchBoardsForUserFn(ctx, workspaceID, userID, name)
	}
	return nil, nil
}

func (f *fakeStore) RenameBoard(ctx context.Context, id, name string) error {
	if f.renameBoardFn != nil {
		return f.renameBoardFn(ctx, id, name)
	}
	return nil
}

func (f *fakeStore) DeleteBoard(ctx context.Context, id string) error {
	if f.deleteBoardFn != nil {
		return f.deleteBoardFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) GetBoardMember(ctx context.Context, boardID, userID string) (store.Membership, error) {
	if f.getBoardMemberFn != nil {
		return f.getBoardMemberFn(ctx, boardID, userID)
	}
	return store.Membership{}, sql.ErrNoRows
}

func (f *fakeStore) ListBoardMembers(ctx context.Context, boardID string) ([]store.MemberInfo, error) {
	if f.listBoardMembersFn != nil {
		return f.listBoardMembersFn(ctx, boardID)
	}
	return nil, nil
}

func (f *fakeStore) UpsertBoardMember(ctx context.Context, boardID, userID, role string) error {
	if f.upsertBoardMemberFn != nil {
		return f.upsertBoardMemberFn(ctx, boardID, userID, role)
	}
	return nil
}

func (f *fakeStore) InsertBoardMembers(ctx context.Context, boardID string, members []store.Membership) error {
	if f.insertBoardMembersFn != nil {
		return f.insertBoardMembersFn(ctx, boardID, members)
	}
	return nil
}

func (f *fakeStore) UpdateBoardMemberRole(ctx context.Context, boardID, userID, role string) error {
	if f.updateBoardMemberRoleFn != nil {
		return f.updateBoardMemberRoleFn(ctx, boardID, userID, role)
	}
	return nil
}

func (f *fakeStore) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	if f.removeBoardMemberFn != nil {
		return f.removeBoardMemberFn(ctx, boardID, userID)
	}
	return nil
}

func (f *fakeStore) RemoveBoardMembershipsInWorkspace(ctx context.Context, workspaceID, userID string) error {
	if f.removeBoardMembershipsInWorkspaceFn != nil {
		return f.removeBoardMembershipsInWorkspaceFn(ctx, workspaceID, userID)
	}
	return nil
}

func (f *fakeStore) InsertOrderable(ctx context.Context, kind store.Kind, row store.Orderable) error {
	if f.insertOrderableFn != nil {
		return f.insertOrderableFn(ctx, kind, row)
	}
	return nil
}

func (f *fakeStore) GetOrderable(ctx context.Context, kind store.Kind, id string) (store.Orderable, error) {
	if f.getOrderableFn != nil {
		return f.getOrderableFn(ctx, kind, id)
	}
	return store.Orderable{}, sql.ErrNoRows
}

func (f *fakeStore) GetOrderableInParent(ctx context.Context, kind store.Kind, id, parentID string) (store.Orderable, error) {
	if f.getOrderableInParentFn != nil {
		return f.getOrderableInParentFn(ctx, kind, id, parentID)
	}
	return store.Orderable{}, sql.ErrNoRows
}

func (f *fakeStore) ListOrderables(ctx context.Context, kind store.Kind, parentID string) ([]store.Orderable, error) {
	if f.listOrderablesFn != nil {
		return f.listOrderablesFn(ctx, kind, parentID)
	}
	return nil, nil
}

func (f *fakeStore) MaxOrderablePosition(ctx context.Context, kind store.Kind, parentID string) (float64, error) {
	if f.maxOrderablePositionFn != nil {
		return f.maxOrderablePositionFn(ctx, kind, parentID)
	}
	return 0, nil
}

func (f *fakeStore) RenameOrderable(ctx context.Context, kind store.Kind, id, name string) error {
	if f.renameOrderableFn != nil {
		return f.renameOrderableFn(ctx, kind, id, name)
	}
	return nil
}

func (f *fakeStore) UpdateTaskDescription(ctx context.Context, id, description string) error {
	if f.updateTaskDescriptionFn != nil {
		return f.updateTaskDescriptionFn(ctx, id, description)
	}
	return nil
}

func (f *fakeStore) DeleteOrderable(ctx context.Context, kind store.Kind, id string) error {
	if f.deleteOrderableFn != nil {
		return f.deleteOrderableFn(ctx, kind, id)
	}
	return nil
}

func (f *fakeStore) UpdateOrderablePosition(ctx context.Context, kind store.Kind, id string, position float64) error {
	if f.updateOrderablePositionFn != nil {
		return f.updateOrderablePositionFn(ctx, kind, id, position)
	}
	return nil
}

func (f *fakeStore) MoveOrderable(ctx context.Context, kind store.Kind, id, parentID string, position float64) error {
	if f.moveOrderableFn != nil {
		return f.moveOrderableFn(ctx, kind, id, parentID, position)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		CORSOrigin: "*",
	}
	return New(cfg, fs, nil, nil)
}

func assertDomainCode(t *testing.T, err error, wantStatus int, wantCode string) {
	t.Helper()
	status, code, _, _ := mapError(err)
	if status != wantStatus || code != wantCode {
		t.Fatalf("expected %d/%s, got %d/%s (err=%v)", wantStatus, wantCode, status, code, err)
	}
}

func assertUnauthorizedCode(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}
