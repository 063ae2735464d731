package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	appErrors "github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/errors"
)

type mockAuthUserRepo struct {
	users     map[string]models.User
	lastLogin map[string]time.Time
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthUserRepo{users: map[string]models.User{
		"u1": {ID: "u1", Email: "admin@cdccentre.in", PasswordHash: string(hash), FullName: "Centre Admin", Role: models.RoleAdmin, Active: true},
		"u2": {ID: "u2", Email: "gone@cdccentre.in", PasswordHash: string(hash), FullName: "Former Teacher", Role: models.RoleTeacher, Active: false},
	}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "cdc-api",
	})
	return svc, repo
}

func TestAuthServiceLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@cdccentre.in", Password: "open-sesame"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Contains(t, repo.lastLogin, "u1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "cdc-api", claims.Issuer)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@cdccentre.in", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	// Unknown accounts fail with the same error as a bad password.
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@cdccentre.in", Password: "open-sesame"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@cdccentre.in", Password: "open-sesame"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsForgery(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&mockAuthUserRepo{}, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "different-secret",
		Expiration: time.Hour,
		Issuer:     "cdc-api",
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@cdccentre.in", Password: "open-sesame"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _ := newAuthFixture(t)

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Centre Admin", info.FullName)

	_, err = svc.Me(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
