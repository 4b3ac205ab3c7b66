package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sce-api/internal/models"
	"github.com/noah-isme/sce-api/pkg/config"
	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

type mockAuthRepo struct {
	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

func newMockAuthRepo(t *testing.T, username, password string) *mockAuthRepo {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthRepo{
		users: map[string]models.User{
			"usr-1": {ID: "usr-1", Username: username, PasswordHash: string(hash), Active: true},
		},
		tokens: map[string]models.RefreshToken{},
	}
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
		m.users[id] = u
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for key, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			m.tokens[key] = t
		}
	}
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "sce-api",
		Expiration:        15 * time.Minute,
		RefreshExpiration: 24 * time.Hour,
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	repo := newMockAuthRepo(t, "admin", "s3cret")
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin", resp.Username)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, "admin", claims.Username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(t, "admin", "s3cret")
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "s3cret"})
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo(t, "admin", "s3cret")
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The spent token must be rejected on replay.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	repo := newMockAuthRepo(t, "admin", "s3cret")
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
