package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/pkg/models"
)

// AuthConfig configures token verification and issuance.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL bounds issued token lifetime. Zero means 24 hours.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

const defaultTokenTTL = 24 * time.Hour

// Authenticator verifies bearer tokens and resolves them to principals.
type Authenticator struct {
	config AuthConfig
	repo   storage.Repository
}

// NewAuthenticator creates an authenticator. The secret must be non-empty.
func NewAuthenticator(config AuthConfig, repo storage.Repository) (*Authenticator, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = defaultTokenTTL
	}
	return &Authenticator{config: config, repo: repo}, nil
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed token for the user, creating the user record on
// first login.
func (a *Authenticator) IssueToken(ctx context.Context, username string) (string, *models.Principal, error) {
	if username == "" {
		return "", nil, fmt.Errorf("auth: username is required")
	}
	user, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		user = &models.User{Username: username}
		if err := a.repo.AddUser(ctx, user); err != nil {
			return "", nil, err
		}
	}

	now := time.Now()
	claims := tokenClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, &models.Principal{ID: user.ID, Username: user.Username}, nil
}

// Verify parses and validates a token and returns the principal it names.
func (a *Authenticator) Verify(ctx context.Context, token string) (*models.Principal, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}

	user, err := a.repo.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("auth: unknown user %q", claims.Username)
	}
	return &models.Principal{ID: user.ID, Username: user.Username}, nil
}
