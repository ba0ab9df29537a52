package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository/mocks"
	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T) (*service.AuthService, *mocks.UserRepository) {
	t.Helper()
	userRepo := new(mocks.UserRepository)
	svc, err := service.NewAuthService(userRepo, testSecret, 1)
	require.NoError(t, err)
	return svc, userRepo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, userRepo := newAuthService(t)
	userRepo.On("Save", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Username == "alice" &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret1")) == nil
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 1
	})

	user, err := svc.Register(context.Background(), "alice", "secret1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Empty(t, user.Password)
	userRepo.AssertExpectations(t)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, userRepo := newAuthService(t)
	userRepo.On("Save", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEntry)

	_, err := svc.Register(context.Background(), "alice", "secret1", "alice@example.com")
	assert.ErrorIs(t, err, service.ErrRegistrationFailed)
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, userRepo := newAuthService(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	userRepo.On("FindByUsername", mock.Anything, "alice").
		Return(&domain.User{ID: 42, Username: "alice", Password: string(hash)}, nil)

	token, err := svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, userRepo := newAuthService(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	userRepo.On("FindByUsername", mock.Anything, "alice").
		Return(&domain.User{ID: 42, Username: "alice", Password: string(hash)}, nil)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, userRepo := newAuthService(t)
	userRepo.On("FindByUsername", mock.Anything, "ghost").
		Return(nil, repository.ErrUserNotFound)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

func TestValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _ := newAuthService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	userRepo := new(mocks.UserRepository)
	userRepo.On("FindByUsername", mock.Anything, "eve").
		Return(&domain.User{ID: 1, Username: "eve", Password: string(hash)}, nil)
	other, err := service.NewAuthService(userRepo, "other-secret", 1)
	require.NoError(t, err)

	token, err := other.Login(context.Background(), "eve", "pw")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}
