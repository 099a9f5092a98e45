package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/openfactory/designcore/internal/config"
	"github.com/openfactory/designcore/internal/storage"
	"github.com/openfactory/designcore/internal/types"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

type AuthService struct {
	storage        *storage.PostgresClient
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
}

func NewAuthService(store *storage.PostgresClient, cfg config.AuthConfig) *AuthService {
	jwtSecret := cfg.GetJWTSecret()

	return &AuthService{
		storage:        store,
		jwtHandler:     NewJWTHandler(jwtSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		passwordHasher: NewPasswordHasher(),
	}
}

// RegisterUser creates a new account. Duplicate emails surface as a unique
// violation from the backing store.
func (a *AuthService) RegisterUser(ctx context.Context, email, password string) (*storage.User, error) {
	if !emailPattern.MatchString(email) {
		return nil, types.NewValidationError("email", "invalid email")
	}
	if len(password) < minPasswordLength {
		return nil, types.NewValidationError("password", "password should be at least 6 characters")
	}

	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.storage.CreateUser(ctx, email, passwordHash)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoginUser authenticates a user and returns tokens
func (a *AuthService) LoginUser(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	if !emailPattern.MatchString(email) {
		return "", "", types.NewValidationError("email", "invalid email")
	}
	if password == "" {
		return "", "", types.NewValidationError("password", "password must not be empty")
	}

	user, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("invalid login credentials")
	}

	// Check if account is locked
	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return "", "", fmt.Errorf("account locked until %v", user.LockedUntil)
	}

	// Verify password
	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		a.storage.IncrementFailedLoginAttempts(ctx, user.ID)
		return "", "", fmt.Errorf("invalid login credentials")
	}

	// Reset failed attempts
	a.storage.ResetFailedLoginAttempts(ctx, user.ID)

	// Generate tokens
	accessToken, err = a.jwtHandler.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Store refresh token
	tokenHash := a.hashRefreshToken(refreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	// Update last login
	a.storage.UpdateLastLogin(ctx, user.ID)

	return accessToken, refreshToken, nil
}

// RefreshAccessToken generates a new token pair from a refresh token
func (a *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, error) {
	tokenHash := a.hashRefreshToken(refreshToken)

	userID, err := a.storage.GetRefreshTokenUser(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := a.storage.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("user not found: %w", err)
	}

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken, err := a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, a.hashRefreshToken(newRefreshToken), expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

// LogoutUser revokes all refresh tokens of the acting user
func (a *AuthService) LogoutUser(ctx context.Context) error {
	user, ok := UserFromContext(ctx)
	if !ok {
		return types.NewValidationError("", "user is not authenticated")
	}
	userID, err := parseUserID(user.ID)
	if err != nil {
		return err
	}
	return a.storage.RevokeRefreshTokens(ctx, userID)
}

// CurrentUser implements the gateway's IdentityProvider over the request
// context populated by the auth middleware. (nil, nil) means unauthenticated.
func (a *AuthService) CurrentUser(ctx context.Context) (*types.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return user, nil
}

// ValidateToken validates a JWT access token and returns its claims
func (a *AuthService) ValidateToken(token string) (*JWTClaims, error) {
	return a.jwtHandler.ValidateAccessToken(token)
}

func (a *AuthService) hashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
