package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User models
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"` // Never expose in JSON
	CreatedAt           time.Time  `json:"created_at"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
}

// GetUserByEmail retrieves a user by email
func (p *PostgresClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at,
		       failed_login_attempts, locked_until
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.LastLoginAt, &user.FailedLoginAttempts, &user.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by id
func (p *PostgresClient) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, last_login_at,
		       failed_login_attempts, locked_until
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.LastLoginAt, &user.FailedLoginAttempts, &user.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user
func (p *PostgresClient) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	var user User
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, created_at, last_login_at, failed_login_attempts, locked_until
	`, email, passwordHash).Scan(
		&user.ID, &user.Email, &user.CreatedAt,
		&user.LastLoginAt, &user.FailedLoginAttempts, &user.LockedUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last login timestamp
func (p *PostgresClient) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE users SET last_login_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// IncrementFailedLoginAttempts increments failed login counter
func (p *PostgresClient) IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= 5 THEN NOW() + INTERVAL '15 minutes'
		        ELSE locked_until
		    END
		WHERE id = $1
	`, userID)
	return err
}

// ResetFailedLoginAttempts resets failed login counter
func (p *PostgresClient) ResetFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1
	`, userID)
	return err
}

// StoreRefreshToken persists a hashed refresh token
func (p *PostgresClient) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenUser resolves an unexpired refresh token hash to its user id
func (p *PostgresClient) GetRefreshTokenUser(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := p.pool.QueryRow(ctx, `
		SELECT user_id FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > NOW() AND revoked_at IS NULL
	`, tokenHash).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, fmt.Errorf("refresh token not found")
		}
		return uuid.Nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshTokens revokes all refresh tokens of a user
func (p *PostgresClient) RevokeRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}
