package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

const testSecret = "test-secret-key"

func newAuthService(t *testing.T, repo *mockUserRepo) *AuthService {
	t.Helper()
	svc, err := NewAuthService(repo, testSecret, 1)
	require.NoError(t, err)
	return svc
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(&mockUserRepo{}, "", 1)
	assert.Error(t, err)
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(t, repo)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		// 落库的必须是 bcrypt 哈希而不是明文
		return u.Username == "alice" &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret1")) == nil
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 7
	})

	user, err := svc.Register(context.Background(), "alice", "secret1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Empty(t, user.Password)
	repo.AssertExpectations(t)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(t, repo)
	repo.On("Save", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEntry)

	_, err := svc.Register(context.Background(), "alice", "secret1", "")
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestLoginAndVerifyToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockUserRepo{}
	svc := newAuthService(t, repo)
	repo.On("FindByUsername", mock.Anything, "alice").Return(&domain.User{
		ID: 7, Username: "alice", Password: string(hash),
	}, nil)

	token, user, err := svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, uint(7), user.ID)
	assert.Empty(t, user.Password)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo := &mockUserRepo{}
	svc := newAuthService(t, repo)
	repo.On("FindByUsername", mock.Anything, "alice").Return(&domain.User{
		ID: 7, Username: "alice", Password: string(hash),
	}, nil)

	_, _, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(t, repo)
	repo.On("FindByUsername", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound)

	_, _, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(t, &mockUserRepo{})
	_, err := svc.VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	repo := &mockUserRepo{}
	other, err := NewAuthService(repo, "another-secret", 1)
	require.NoError(t, err)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	repo.On("FindByUsername", mock.Anything, "alice").Return(&domain.User{
		ID: 7, Username: "alice", Password: string(hash),
	}, nil)
	token, _, err := other.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	svc := newAuthService(t, &mockUserRepo{})
	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
