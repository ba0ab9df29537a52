// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// UserRepository mocks repository.UserRepository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// DocumentRepository mocks repository.DocumentRepository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) FindByID(ctx context.Context, id uint) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*domain.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) ListForUser(ctx context.Context, userID uint) ([]domain.Document, error) {
	args := m.Called(ctx, userID)
	if d := args.Get(0); d != nil {
		return d.([]domain.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *DocumentRepository) SaveContent(ctx context.Context, id uint, title, content string) error {
	args := m.Called(ctx, id, title, content)
	return args.Error(0)
}

func (m *DocumentRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ShareRepository mocks repository.ShareRepository.
type ShareRepository struct {
	mock.Mock
}

func (m *ShareRepository) FindGrant(ctx context.Context, documentID, granteeID uint) (*domain.ShareGrant, error) {
	args := m.Called(ctx, documentID, granteeID)
	if g := args.Get(0); g != nil {
		return g.(*domain.ShareGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ShareRepository) Upsert(ctx context.Context, grant *domain.ShareGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *ShareRepository) ListForDocument(ctx context.Context, documentID uint) ([]domain.ShareGrant, error) {
	args := m.Called(ctx, documentID)
	if g := args.Get(0); g != nil {
		return g.([]domain.ShareGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ShareRepository) DeleteForDocument(ctx context.Context, documentID uint) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// StateRepository mocks repository.StateRepository.
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) PushOperationToHistory(ctx context.Context, documentID uint, op domain.Operation) error {
	args := m.Called(ctx, documentID, op)
	return args.Error(0)
}

func (m *StateRepository) GetRecentOperations(ctx context.Context, documentID uint, limit int) ([]domain.Operation, error) {
	args := m.Called(ctx, documentID, limit)
	if ops := args.Get(0); ops != nil {
		return ops.([]domain.Operation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) CleanupDocumentState(ctx context.Context, documentID uint) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// OperationRepository mocks repository.OperationRepository.
type OperationRepository struct {
	mock.Mock
}

func (m *OperationRepository) SaveBatch(ctx context.Context, ops []domain.Operation) error {
	args := m.Called(ctx, ops)
	return args.Error(0)
}

func (m *OperationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
