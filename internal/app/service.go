package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/blob"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	FullName     string
	JTI          string
	ExpiresAt    time.Time
}

// sessionStore holds refresh tokens. Redis when configured, the
// Postgres store otherwise; both speak the same three methods.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    store.Store
	sessions sessionStore
	authpw   *authpw.Service
	search   *search.Service
	email    *email.Service
	blobs    *blob.Store

	// notify overrides SMTP delivery of membership notices when set.
	notify func(user store.User, inviterName, scopeKind, scopeName string, role rbac.Role)
}

func New(cfg config.Config, dataStore store.Store, authSvc *authpw.Service, searchSvc *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		authpw:   authSvc,
		search:   searchSvc,
	}
}

// NewWithSessionStore is New with refresh tokens kept outside Postgres.
func NewWithSessionStore(cfg config.Config, dataStore store.Store, sessions sessionStore, authSvc *authpw.Service, searchSvc *search.Service) *Service {
	service := New(cfg, dataStore, authSvc, searchSvc)
	service.sessions = sessions
	return service
}

// SetEmailService enables membership and account emails.
func (s *Service) SetEmailService(svc *email.Service) {
	s.email = svc
}

// SetBlobStore enables avatar uploads.
func (s *Service) SetBlobStore(blobs *blob.Store) {
	s.blobs = blobs
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SignUp registers an account and sends the verification email when
// SMTP is configured.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (*authpw.SignUpResponse, error) {
	resp, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.SMTPConfigured() {
		verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.CORSOrigin, resp.VerificationToken)
		go func() {
			if err := s.email.SendVerificationEmail(req.Email, req.FullName, verifyURL); err != nil {
				log.Printf("email: verification to %s: %v", req.Email, err)
			}
		}()
	}
	return resp, nil
}

// CreateSession issues an access/refresh token pair for a known user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	cached, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Re-read the profile so a refresh picks up renames and new avatars.
	user, err := s.store.GetUserByID(ctx, cached.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Profile returns the public shape of the session's account.
func (s *Service) Profile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"fullName":  user.FullName,
		"avatarUrl": user.AvatarURL,
		"provider":  user.Provider,
	}, nil
}

// UploadAvatar stores the image in object storage and records its key
// on the user row.
func (s *Service) UploadAvatar(ctx context.Context, userID, filename string, r io.Reader, size int64) (string, error) {
	if s.blobs == nil {
		return "", domainError(503, "STORAGE_UNAVAILABLE", "Avatar storage not configured", nil)
	}
	key, err := s.blobs.PutAvatar(ctx, userID, filename, r, size)
	if err != nil {
		return "", errValidation(err.Error(), nil)
	}
	if err := s.store.UpdateUserAvatar(ctx, userID, key); err != nil {
		return "", err
	}
	return key, nil
}

// OpenAvatar streams the caller's stored avatar.
func (s *Service) OpenAvatar(ctx context.Context, userID string) (io.ReadCloser, error) {
	if s.blobs == nil {
		return nil, domainError(503, "STORAGE_UNAVAILABLE", "Avatar storage not configured", nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AvatarURL == "" {
		return nil, errNotFound("No avatar uploaded")
	}
	return s.blobs.GetAvatar(ctx, user.AvatarURL)
}

// Search runs a membership-scoped full-text search over boards and
// tasks.
func (s *Service) Search(ctx context.Context, actorID, text, filterType, workspaceID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	boards, err := s.store.ListBoardsForUser(ctx, workspaceID, actorID)
	if err != nil {
		return search.Response{}, err
	}
	allowed := make([]string, 0, len(boards))
	for _, b := range boards {
		allowed = append(allowed, b.ID)
	}
	return s.search.Search(search.Query{
		Text:            text,
		FilterType:      search.ResultType(filterType),
		WorkspaceID:     workspaceID,
		AllowedBoardIDs: allowed,
		Limit:           limit,
		Offset:          offset,
	}), nil
}

// notifyAdded emails the target that they were added to a scope. The
// callers fire it only after their membership transaction has
// committed, never from inside it.
func (s *Service) notifyAdded(user store.User, inviterName, scopeKind, scopeName string, role rbac.Role) {
	if s.notify != nil {
		s.notify(user, inviterName, scopeKind, scopeName, role)
		return
	}
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		if err := s.email.SendAddedToScopeEmail(user.Email, user.FullName, inviterName, scopeKind, scopeName, string(role)); err != nil {
			log.Printf("email: membership notice to %s: %v", user.Email, err)
		}
	}()
}
