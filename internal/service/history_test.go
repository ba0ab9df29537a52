package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository"
	"github.com/rakib-sikder/shared-doc-editor/internal/repository/mocks"
	"github.com/rakib-sikder/shared-doc-editor/internal/service"
)

func TestRecentOperationsRequiresAccess(t *testing.T) {
	userRepo := new(mocks.UserRepository)
	docRepo := new(mocks.DocumentRepository)
	shareRepo := new(mocks.ShareRepository)
	stateRepo := new(mocks.StateRepository)
	gw := service.NewPermissionGateway(stubTokenValidator{}, userRepo, docRepo, shareRepo)
	svc := service.NewHistoryService(stateRepo, gw)

	docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	shareRepo.On("FindGrant", mock.Anything, uint(1), uint(2)).
		Return(nil, repository.ErrGrantNotFound)

	_, err := svc.RecentOperations(context.Background(), 2, 1, 10)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
	stateRepo.AssertNotCalled(t, "GetRecentOperations", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecentOperationsClampsLimit(t *testing.T) {
	userRepo := new(mocks.UserRepository)
	docRepo := new(mocks.DocumentRepository)
	shareRepo := new(mocks.ShareRepository)
	stateRepo := new(mocks.StateRepository)
	gw := service.NewPermissionGateway(stubTokenValidator{}, userRepo, docRepo, shareRepo)
	svc := service.NewHistoryService(stateRepo, gw)

	docRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Document{ID: 1, OwnerID: 9}, nil)
	stateRepo.On("GetRecentOperations", mock.Anything, uint(1), 100).
		Return([]domain.Operation{{DocumentID: 1, Seq: 1}}, nil)

	ops, err := svc.RecentOperations(context.Background(), 9, 1, 100000)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
	stateRepo.AssertExpectations(t)
}
