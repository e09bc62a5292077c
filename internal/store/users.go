package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const userCols = `id, email, full_name, avatar_url, COALESCE(password_hash, ''), provider,
	is_email_verified, COALESCE(verification_token, ''), verification_expires_at, created_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.PasswordHash, &u.Provider,
		&u.IsEmailVerified, &u.VerificationToken, &u.VerificationExpiresAt, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	var hash any
	if user.PasswordHash != "" {
		hash = user.PasswordHash
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, avatar_url, password_hash, provider, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		user.ID, user.Email, user.FullName, user.AvatarURL, hash, user.Provider,
		user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET avatar_url = $2 WHERE id = $1`, userID, avatarURL)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE users SET verification_token = $2, verification_expires_at = $3 WHERE id = $1`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified = TRUE, verification_token = NULL, verification_expires_at = NULL
		WHERE verification_token = $1 AND verification_expires_at > NOW()`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id FROM password_reset_tokens
		WHERE token = $1 AND NOT used AND expires_at > NOW()`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}
